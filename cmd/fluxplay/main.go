// main.go - fluxplay: a terminal host for the fluxgraph engine. Loads a
// patch (a Lua script building a graph description, see patch.go), opens
// an audio output stream (player.go), and reads the keyboard in raw mode
// (keyboard.go) to drive a voice module in the patch. Concurrency between
// the keyboard reader and the control-dispatch loop follows the teacher's
// goroutine-per-subsystem style, coordinated here with errgroup instead of
// the teacher's removed coprocessor worker pool.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"golang.org/x/sync/errgroup"

	"github.com/signalforge/fluxgraph"
)

const (
	sampleRate = 48000
	blockSize  = 256
)

func main() {
	patchPath := flag.String("patch", "", "path to a Lua patch script (defaults to a built-in VCO+VCF patch)")
	voiceID := flag.String("voice", "vco1", "module id the keyboard drives via cv/gate")
	flag.Parse()

	source := defaultPatch
	if *patchPath != "" {
		data, err := os.ReadFile(*patchPath)
		if err != nil {
			log.Fatalf("fluxplay: reading patch %s: %v", *patchPath, err)
		}
		source = string(data)
	}

	desc, err := loadPatch(source)
	if err != nil {
		log.Fatalf("fluxplay: %v", err)
	}

	engine := fluxgraph.NewEngine(fluxgraph.ProcessContext{SampleRate: sampleRate, BlockSize: blockSize})
	if err := engine.SetGraph(desc); err != nil {
		log.Fatalf("fluxplay: installing patch: %v", err)
	}

	audio, err := newPlayer(sampleRate, blockSize, engine)
	if err != nil {
		log.Fatalf("fluxplay: audio output: %v", err)
	}
	audio.Start()
	defer audio.Close()

	events := make(chan noteEvent, 16)
	quit := make(chan struct{})
	kb, err := newKeyboard(events, quit)
	if err != nil {
		log.Fatalf("fluxplay: %v", err)
	}
	defer kb.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		kb.Run(gctx.Done())
		return nil
	})
	group.Go(func() error {
		return dispatchNotes(gctx, engine, *voiceID, events, quit)
	})

	fmt.Println("fluxplay: qwerty row a-k plays a scale, 'q' or ctrl-c quits")
	if err := group.Wait(); err != nil {
		log.Fatalf("fluxplay: %v", err)
	}
}

// dispatchNotes drains note events onto the control surface until ctx is
// canceled or quit is closed. Each key press sets the voice's 1V/oct cv
// from its semitone offset and pulses the gate (spec.md §4.2 per-voice
// control operations are only ever observable at the next block boundary,
// so no locking is needed here beyond the engine's own single-writer rule).
func dispatchNotes(ctx context.Context, engine *fluxgraph.Engine, voiceID string, events <-chan noteEvent, quit <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-quit:
			return nil
		case ev := <-events:
			cv := fluxgraph.Sample(ev.semitone) / 12
			engine.SetVoiceCV(voiceID, cv)
			engine.SetVoiceGate(voiceID, ev.on)
		}
	}
}
