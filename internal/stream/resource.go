package stream

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sonroyaalmerol/kumaplayer/internal/audio"
	"github.com/sonroyaalmerol/kumaplayer/internal/media"
	"github.com/sonroyaalmerol/kumaplayer/internal/voice"
)

// bufferPackets is how far the encoder may run ahead of the sender, about
// two seconds of audio.
const bufferPackets = 100

// resource is a decoded and encoded track ready to be sent. Encoding starts
// as soon as it is created.
type resource struct {
	meta   voice.Metadata
	inline bool
	gain   atomic.Uint64
	sent   atomic.Int64

	pcm    io.ReadCloser
	enc    *encoder
	buf    *audio.Buffer
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	log    *slog.Logger
}

func newResource(ctx context.Context, s *media.TrackStream, opts voice.ResourceOptions, log *slog.Logger) (*resource, error) {
	log = log.With("track", opts.Metadata.Track.Title)

	pcm, err := openPCM(context.WithoutCancel(ctx), s, log)
	if err != nil {
		return nil, err
	}
	enc, err := newEncoder(log)
	if err != nil {
		_ = pcm.Close()
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	r := &resource{
		meta:   opts.Metadata,
		inline: opts.InlineVolume,
		pcm:    pcm,
		enc:    enc,
		buf:    audio.NewBuffer(bufferPackets),
		cancel: cancel,
		done:   make(chan struct{}),
		log:    log,
	}
	r.gain.Store(math.Float64bits(1))
	go r.produce(runCtx)
	return r, nil
}

func (r *resource) Metadata() voice.Metadata { return r.meta }
func (r *resource) HasVolume() bool          { return r.inline }

func (r *resource) SetVolume(gain float64) {
	if !r.inline {
		return
	}
	r.gain.Store(math.Float64bits(max(gain, 0)))
}

func (r *resource) PlaybackDuration() time.Duration {
	return audio.FramesToDuration(r.sent.Load())
}

// next blocks until the following packet is encoded. It reports false at
// the end of the track.
func (r *resource) next(ctx context.Context) ([]byte, bool) {
	pkt, ok := r.buf.Pop(ctx)
	if !ok {
		return nil, false
	}
	return pkt.Data, true
}

func (r *resource) markSent() { r.sent.Add(1) }

func (r *resource) Close() error {
	r.once.Do(func() {
		r.cancel()
		r.buf.Close()
		if r.pcm != nil {
			_ = r.pcm.Close()
		}
		<-r.done
		if r.enc != nil {
			r.enc.Close()
		}
	})
	return nil
}

func (r *resource) produce(ctx context.Context) {
	defer close(r.done)
	defer r.buf.MarkEOS()

	br := bufio.NewReaderSize(r.pcm, 64*1024)
	frame := make([]byte, audio.FrameBytes)
	var n int64

	push := func(pkt []byte) error {
		if !r.buf.Push(pkt, n) {
			return context.Canceled
		}
		n++
		return nil
	}

	for ctx.Err() == nil {
		read, err := io.ReadFull(br, frame)
		if errors.Is(err, io.ErrUnexpectedEOF) {
			clear(frame[read:])
		} else if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				r.log.Warn("decoding stopped", "err", err)
			}
			_ = r.enc.Flush(push)
			return
		}

		if r.inline {
			audio.ApplyGain(frame, math.Float64frombits(r.gain.Load()))
		}
		if err := r.enc.Encode(frame, push); err != nil {
			if ctx.Err() == nil {
				r.log.Warn("encoding failed", "err", err)
			}
			return
		}
	}
}
