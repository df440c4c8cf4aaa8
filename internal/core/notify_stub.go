//go:build !linux

package core

import "github.com/Srinivas26k/ZoomPollMaster/pkg/logx"

func notifyReady(logx.Logger)    {}
func notifyStopping(logx.Logger) {}
