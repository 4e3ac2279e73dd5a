//go:build !headless

// player.go - oto v3 audio output, adapted from the teacher's
// audio_backend_oto.go to pull interleaved stereo blocks from a
// fluxgraph.Engine instead of a SoundChip's mono sample ring.

package main

import (
	"sync"
	"unsafe"

	"github.com/ebitengine/oto/v3"

	"github.com/signalforge/fluxgraph"
)

// player wraps an oto.Player that pulls rendered audio from an Engine on
// demand. Only mutex-guarded setup/control operations take the lock; the
// Read hot path never blocks on anything but the engine's own Render.
type player struct {
	ctx       *oto.Context
	otoPlayer *oto.Player
	engine    *fluxgraph.Engine
	blockSize int
	sampleBuf []byte
	started   bool
	mutex     sync.Mutex
}

// newPlayer opens an oto context at sampleRate and wires it to engine.
// blockSize is recorded on the player; each Read renders as many frames
// as oto's request holds.
func newPlayer(sampleRate, blockSize int, engine *fluxgraph.Engine) (*player, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
		BufferSize:   0,
	})
	if err != nil {
		return nil, err
	}
	<-ready

	p := &player{ctx: ctx, engine: engine, blockSize: blockSize}
	p.otoPlayer = ctx.NewPlayer(p)
	return p, nil
}

// Read renders len(dst)/8 stereo frames from the engine and copies them
// into dst as raw float32LE bytes; oto calls this on its own mixing
// goroutine.
func (p *player) Read(dst []byte) (int, error) {
	frames := len(dst) / 8 // 2 channels * 4 bytes
	if frames == 0 {
		return 0, nil
	}
	samples := p.engine.Render(frames)
	need := len(samples) * 4
	if cap(p.sampleBuf) < need {
		p.sampleBuf = make([]byte, need)
	}
	buf := p.sampleBuf[:need]
	copy(buf, (*[1 << 30]byte)(unsafe.Pointer(&samples[0]))[:need])
	n := copy(dst, buf)
	return n, nil
}

func (p *player) Start() {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if !p.started {
		p.otoPlayer.Play()
		p.started = true
	}
}

func (p *player) Close() {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.started {
		_ = p.otoPlayer.Close()
		p.started = false
	}
}
