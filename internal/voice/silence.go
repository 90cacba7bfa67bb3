package voice

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// SilenceFrame — опус-фрейм тишины (20ms).
var SilenceFrame = []byte{0xF8, 0xFF, 0xFE}

// DefaultFrameInterval — длительность одного опус-фрейма.
const DefaultFrameInterval = 20 * time.Millisecond

// silenceTrackFrames — длина «трека» тишины, после которого он начинается заново.
const silenceTrackFrames = 50

// SilenceTrack возвращает короткий трек из фреймов тишины (~1s).
func SilenceTrack() [][]byte {
	track := make([][]byte, silenceTrackFrames)
	for i := range track {
		track[i] = SilenceFrame
	}
	return track
}

// Emitter крутит трек тишины по кругу в FrameSink.
// У трека нет естественного конца: доиграл, начинаем сначала.
type Emitter struct {
	interval time.Duration
	track    [][]byte

	// OnError вызывается на первую ошибку отправки из серии подряд идущих.
	OnError func(error)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	loops atomic.Int64
}

func NewEmitter(interval time.Duration) *Emitter {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &Emitter{interval: interval, track: SilenceTrack()}
}

// Start запускает воспроизведение. Если уже играет, старое останавливается,
// новое его заменяет (не накладывается).
func (e *Emitter) Start(sink FrameSink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	e.cancel, e.done = cancel, done
	go e.play(ctx, sink, done)
}

// Stop останавливает воспроизведение; без Start ничего не делает.
func (e *Emitter) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
}

// Active — играет ли сейчас.
func (e *Emitter) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancel != nil
}

// Loops — сколько раз трек доигран до конца.
func (e *Emitter) Loops() int64 { return e.loops.Load() }

func (e *Emitter) stopLocked() {
	if e.cancel == nil {
		return
	}
	e.cancel()
	<-e.done
	e.cancel, e.done = nil, nil
}

func (e *Emitter) play(ctx context.Context, sink FrameSink, done chan struct{}) {
	defer close(done)

	t := time.NewTicker(e.interval)
	defer t.Stop()

	failing := false
	for {
		for _, frame := range e.track {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
			if err := sink.SendFrame(ctx, frame); err != nil {
				if ctx.Err() != nil {
					return
				}
				// не спамим: сообщаем только о начале серии ошибок
				if !failing && e.OnError != nil {
					e.OnError(err)
				}
				failing = true
				continue
			}
			failing = false
		}
		e.loops.Add(1)
	}
}
