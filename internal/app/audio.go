package app

import (
	"go.aimuz.me/signal/audiocapture"
	"go.aimuz.me/signal/config"
)

// AudioSource builds the capture source selected in cfg.
func AudioSource(cfg config.AudioConfig) audiocapture.Source {
	capCfg := audiocapture.Config{SampleRate: cfg.SampleRate, Channels: 1}

	switch cfg.Source {
	case config.SourceLoopback:
		return audiocapture.NewDeviceSource(audiocapture.KindLoopback, capCfg)
	case config.SourceMicrophone:
		return audiocapture.NewDeviceSource(audiocapture.KindMicrophone, capCfg)
	case config.SourceCommand:
		return audiocapture.NewCommandSource(cfg.Command, capCfg)
	default:
		// Meeting audio first, the microphone when the backend has no loopback.
		return audiocapture.Fallback(
			audiocapture.NewDeviceSource(audiocapture.KindLoopback, capCfg),
			audiocapture.NewDeviceSource(audiocapture.KindMicrophone, capCfg),
		)
	}
}
