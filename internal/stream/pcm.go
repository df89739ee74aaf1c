package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/sonroyaalmerol/kumaplayer/internal/audio"
	"github.com/sonroyaalmerol/kumaplayer/internal/media"
	"github.com/sonroyaalmerol/kumaplayer/internal/utils"
)

// pcmDecoder demuxes and decodes one input and produces interleaved s16le
// stereo 48k PCM on its reader side.
type pcmDecoder struct {
	fc      *astiav.FormatContext
	ioCtx   *astiav.IOContext
	stream  *astiav.Stream
	decCtx  *astiav.CodecContext
	swr     *astiav.SoftwareResampleContext
	src     *astiav.Frame
	dst     *astiav.Frame
	packet  *astiav.Packet
	input   io.ReadCloser
	pr      *io.PipeReader
	pw      *io.PipeWriter
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
	log     *slog.Logger
	errMu   sync.Mutex
	runErr  error
	opened  bool
}

// openPCM opens s for decoding. Raw streams bypass ffmpeg entirely.
func openPCM(ctx context.Context, s *media.TrackStream, log *slog.Logger) (io.ReadCloser, error) {
	if s.Type == media.StreamRaw && s.Reader != nil {
		return s.Reader, nil
	}

	d := &pcmDecoder{log: log, input: s.Reader, done: make(chan struct{})}
	if err := d.open(s); err != nil {
		d.free()
		return nil, err
	}

	d.pr, d.pw = io.Pipe()
	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	go d.run(runCtx, s.Seek)
	return d, nil
}

func (d *pcmDecoder) open(s *media.TrackStream) error {
	d.fc = astiav.AllocFormatContext()
	if d.fc == nil {
		return errors.New("alloc format context")
	}

	dict := astiav.NewDictionary()
	defer dict.Free()

	input := s.URL
	if s.Reader != nil {
		ioCtx, err := astiav.AllocIOContext(16*1024, false, func(b []byte) (int, error) {
			return s.Reader.Read(b)
		}, nil, nil)
		if err != nil {
			return fmt.Errorf("alloc io context: %w", err)
		}
		d.ioCtx = ioCtx
		d.fc.SetPb(ioCtx)
		d.fc.SetFlags(d.fc.Flags().Add(astiav.FormatContextFlagCustomIo))
		input = ""
	} else if strings.HasPrefix(input, "http") {
		_ = dict.Set("reconnect", "1", 0)
		_ = dict.Set("reconnect_streamed", "1", 0)
		_ = dict.Set("reconnect_delay_max", "5", 0)
		_ = dict.Set("headers", utils.BuildStreamHeaders(nil), 0)
	}

	if err := d.fc.OpenInput(input, nil, dict); err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	d.opened = true
	if err := d.fc.FindStreamInfo(nil); err != nil {
		return fmt.Errorf("find stream info: %w", err)
	}

	st, codec, err := d.fc.FindBestStream(astiav.MediaTypeAudio, -1, -1)
	if err != nil {
		return fmt.Errorf("find audio stream: %w", err)
	}
	if st == nil || codec == nil {
		return errors.New("no audio stream found")
	}
	d.stream = st

	d.decCtx = astiav.AllocCodecContext(codec)
	if d.decCtx == nil {
		return errors.New("alloc codec context")
	}
	if err := st.CodecParameters().ToCodecContext(d.decCtx); err != nil {
		return fmt.Errorf("codec parameters: %w", err)
	}
	d.decCtx.SetTimeBase(st.TimeBase())
	if err := d.decCtx.Open(codec, nil); err != nil {
		return fmt.Errorf("open decoder: %w", err)
	}

	d.swr = astiav.AllocSoftwareResampleContext()
	d.src = astiav.AllocFrame()
	d.dst = astiav.AllocFrame()
	d.packet = astiav.AllocPacket()
	if d.swr == nil || d.src == nil || d.dst == nil || d.packet == nil {
		return errors.New("alloc decoder buffers")
	}
	return nil
}

func (d *pcmDecoder) Read(b []byte) (int, error) { return d.pr.Read(b) }

// Err is the error that stopped decoding early, if any.
func (d *pcmDecoder) Err() error {
	d.errMu.Lock()
	defer d.errMu.Unlock()
	return d.runErr
}

func (d *pcmDecoder) Close() error {
	d.once.Do(func() {
		d.cancel()
		_ = d.pr.Close()
		<-d.done
		d.free()
	})
	return nil
}

func (d *pcmDecoder) free() {
	if d.packet != nil {
		d.packet.Free()
	}
	if d.src != nil {
		d.src.Free()
	}
	if d.dst != nil {
		d.dst.Free()
	}
	if d.swr != nil {
		d.swr.Free()
	}
	if d.decCtx != nil {
		d.decCtx.Free()
	}
	if d.fc != nil {
		if d.opened {
			d.fc.CloseInput()
		}
		d.fc.Free()
	}
	if d.ioCtx != nil {
		d.ioCtx.Free()
	}
	if d.input != nil {
		_ = d.input.Close()
	}
}

func (d *pcmDecoder) run(ctx context.Context, seek time.Duration) {
	defer close(d.done)
	defer func() { _ = d.pw.CloseWithError(d.Err()) }()

	if seek > 0 {
		ts := astiav.RescaleQ(seek.Microseconds(), astiav.NewRational(1, 1_000_000), d.stream.TimeBase())
		if err := d.fc.SeekFrame(d.stream.Index(), ts, astiav.NewSeekFlags(astiav.SeekFlagBackward)); err != nil {
			d.log.Debug("seek failed, starting from the beginning", "seek", seek, "err", err)
		}
	}

	for {
		if ctx.Err() != nil {
			return
		}

		d.packet.Unref()
		if err := d.fc.ReadFrame(d.packet); err != nil {
			if errors.Is(err, astiav.ErrEof) {
				_ = d.decCtx.SendPacket(nil)
				d.drain()
				return
			}
			if errors.Is(err, astiav.ErrEagain) {
				continue
			}
			d.setErr(fmt.Errorf("read frame: %w", err))
			return
		}
		if d.packet.StreamIndex() != d.stream.Index() {
			continue
		}

		if err := d.decCtx.SendPacket(d.packet); err != nil && !errors.Is(err, astiav.ErrEagain) {
			d.setErr(fmt.Errorf("send packet: %w", err))
			return
		}
		if !d.drain() {
			return
		}
	}
}

// drain writes every frame the decoder has ready. It returns false when
// writing failed and the loop should stop.
func (d *pcmDecoder) drain() bool {
	for {
		d.src.Unref()
		if err := d.decCtx.ReceiveFrame(d.src); err != nil {
			if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
				return true
			}
			d.setErr(fmt.Errorf("receive frame: %w", err))
			return false
		}
		if err := d.convert(d.src); err != nil {
			d.setErr(err)
			return false
		}
	}
}

func (d *pcmDecoder) convert(src *astiav.Frame) error {
	nb := astiav.RescaleQ(int64(src.NbSamples()), astiav.NewRational(1, src.SampleRate()), astiav.NewRational(1, audio.SampleRate))

	d.dst.Unref()
	d.dst.SetChannelLayout(astiav.ChannelLayoutStereo)
	d.dst.SetSampleRate(audio.SampleRate)
	d.dst.SetSampleFormat(astiav.SampleFormatS16)
	d.dst.SetNbSamples(int(nb) + 32)
	if err := d.dst.AllocBuffer(0); err != nil {
		return fmt.Errorf("alloc pcm buffer: %w", err)
	}
	if err := d.swr.ConvertFrame(src, d.dst); err != nil {
		return fmt.Errorf("resample: %w", err)
	}
	if d.dst.NbSamples() == 0 {
		return nil
	}

	b, err := d.dst.Data().Bytes(1)
	if err != nil {
		return fmt.Errorf("pcm bytes: %w", err)
	}
	_, err = d.pw.Write(b)
	return err
}

func (d *pcmDecoder) setErr(err error) {
	d.errMu.Lock()
	defer d.errMu.Unlock()
	if d.runErr == nil {
		d.runErr = err
	}
}
