//go:build linux

package core

import (
	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/Srinivas26k/ZoomPollMaster/pkg/logx"
)

// notifyReady tells systemd the daemon is up when running as a Type=notify
// unit. A false return just means there is no notify socket.
func notifyReady(log logx.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		log.Warn("sd_notify ready", logx.Err(err))
		return
	}
	if sent {
		log.Debug("notified systemd: ready")
	}
}

func notifyStopping(log logx.Logger) {
	if _, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err != nil {
		log.Warn("sd_notify stopping", logx.Err(err))
	}
}
