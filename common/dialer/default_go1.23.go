//go:build go1.23

package dialer

import (
	"net"
	"time"
)

// Zero idle and interval leave the OS defaults in place.
func setKeepAliveConfig(dialer *net.Dialer, idle time.Duration, interval time.Duration) {
	dialer.KeepAliveConfig = net.KeepAliveConfig{
		Enable:   true,
		Idle:     idle,
		Interval: interval,
	}
}
