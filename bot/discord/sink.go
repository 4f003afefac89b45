package discord

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/jonas747/dca"

	"github.com/muhammadzakizn/sonora/bot"
	"github.com/muhammadzakizn/sonora/bot/player"
)

const (
	opusFrameDuration = 20 * time.Millisecond
	opusSendTimeout   = time.Second
	voiceReadyRetries = 5
	voiceReadyWait    = time.Second
)

// VoiceSink is the per-guild audio transport over a discordgo voice
// connection. It implements player.AudioSink: each Play encodes the file
// with dca and streams opus frames at the 20ms cadence Discord expects.
type VoiceSink struct {
	session *discordgo.Session
	guildID string
	logger  bot.Logger

	mu sync.Mutex
	vc *discordgo.VoiceConnection
}

func NewVoiceSink(session *discordgo.Session, guildID string, logger bot.Logger) *VoiceSink {
	return &VoiceSink{session: session, guildID: guildID, logger: logger}
}

// Connect joins or moves to the voice channel and waits for the
// connection to become ready.
func (s *VoiceSink) Connect(ctx context.Context, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.vc != nil && s.vc.Ready && s.vc.ChannelID == channelID {
		return nil
	}

	vc, err := s.session.ChannelVoiceJoin(s.guildID, channelID, false, true)
	if err != nil {
		return fmt.Errorf("join voice channel %s: %w", channelID, err)
	}

	for i := 0; i < voiceReadyRetries; i++ {
		if vc.Ready {
			s.vc = vc
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(voiceReadyWait):
		}
	}
	if !vc.Ready {
		return fmt.Errorf("voice connection to %s never became ready", channelID)
	}
	s.vc = vc
	return nil
}

// CurrentChannel returns the connected channel ID, empty when disconnected.
func (s *VoiceSink) CurrentChannel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vc == nil || !s.vc.Ready {
		return ""
	}
	return s.vc.ChannelID
}

// Disconnect leaves the voice channel.
func (s *VoiceSink) Disconnect() {
	s.mu.Lock()
	vc := s.vc
	s.vc = nil
	s.mu.Unlock()

	if vc != nil {
		if err := vc.Disconnect(); err != nil {
			s.logger.Warn("voice disconnect failed", "guild_id", s.guildID, "error", err)
		}
	}
}

// Play encodes the file and starts streaming. The returned handle owns
// the encoding session; its Done channel fires exactly once.
func (s *VoiceSink) Play(ctx context.Context, path string, volume int) (player.PlayHandle, error) {
	s.mu.Lock()
	vc := s.vc
	s.mu.Unlock()

	if vc == nil || !vc.Ready {
		return nil, errors.New("not connected to a voice channel")
	}

	encoder, err := dca.EncodeFile(path, encodeOptions(volume))
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", path, err)
	}

	if err := vc.Speaking(true); err != nil {
		encoder.Cleanup()
		return nil, fmt.Errorf("set speaking: %w", err)
	}

	h := &voiceHandle{
		stop: make(chan struct{}),
		done: make(chan error, 1),
	}
	go h.stream(ctx, vc, encoder, s.logger)
	return h, nil
}

// encodeOptions builds a fresh per-call EncodeOptions. StdEncodeOptions
// is a shared pointer, so the struct is copied first: concurrent guilds
// must never mutate each other's encode settings.
func encodeOptions(volume int) *dca.EncodeOptions {
	options := *dca.StdEncodeOptions
	options.RawOutput = true
	options.Bitrate = 128
	options.Application = dca.AudioApplicationAudio
	options.BufferedFrames = 200
	options.FrameDuration = 20
	options.VBR = true
	// dca volume is 0-512 with 256 as unity; player volume is 0-200
	// with 100 as unity.
	options.Volume = 256 * volume / 100
	return &options
}

// voiceHandle controls one in-flight encoded stream.
type voiceHandle struct {
	mu     sync.Mutex
	paused bool

	stop     chan struct{}
	stopOnce sync.Once
	done     chan error
	doneOnce sync.Once
}

func (h *voiceHandle) Pause() error {
	h.mu.Lock()
	h.paused = true
	h.mu.Unlock()
	return nil
}

func (h *voiceHandle) Resume() error {
	h.mu.Lock()
	h.paused = false
	h.mu.Unlock()
	return nil
}

func (h *voiceHandle) Stop() error {
	h.stopOnce.Do(func() { close(h.stop) })
	return nil
}

func (h *voiceHandle) Done() <-chan error {
	return h.done
}

func (h *voiceHandle) isPaused() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.paused
}

func (h *voiceHandle) finish(err error) {
	h.doneOnce.Do(func() { h.done <- err })
}

// stream pushes opus frames to the voice connection until end of stream,
// Stop, or context cancellation. Paused streams keep the goroutine alive
// without sending frames so resume picks up exactly where it left off.
func (h *voiceHandle) stream(ctx context.Context, vc *discordgo.VoiceConnection, encoder *dca.EncodeSession, logger bot.Logger) {
	defer encoder.Cleanup()
	defer func() {
		if err := vc.Speaking(false); err != nil {
			logger.Debug("clear speaking state failed", "error", err)
		}
	}()

	for {
		select {
		case <-h.stop:
			h.finish(nil)
			return
		case <-ctx.Done():
			h.finish(ctx.Err())
			return
		default:
		}

		if h.isPaused() {
			select {
			case <-h.stop:
				h.finish(nil)
				return
			case <-ctx.Done():
				h.finish(ctx.Err())
				return
			case <-time.After(opusFrameDuration):
			}
			continue
		}

		frame, err := encoder.OpusFrame()
		if err != nil {
			if err == io.EOF {
				h.finish(nil)
			} else {
				h.finish(fmt.Errorf("read opus frame: %w", err))
			}
			return
		}

		select {
		case vc.OpusSend <- frame:
		case <-h.stop:
			h.finish(nil)
			return
		case <-ctx.Done():
			h.finish(ctx.Err())
			return
		case <-time.After(opusSendTimeout):
			h.finish(errors.New("timeout sending opus frame"))
			return
		}
	}
}
