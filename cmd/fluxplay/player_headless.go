//go:build headless

// player_headless.go - no-op audio backend for headless builds/tests,
// mirroring the teacher's audio_backend_headless.go build-tag split.

package main

import "github.com/signalforge/fluxgraph"

type player struct {
	engine *fluxgraph.Engine
}

func newPlayer(sampleRate, blockSize int, engine *fluxgraph.Engine) (*player, error) {
	return &player{engine: engine}, nil
}

func (p *player) Start() {}
func (p *player) Close() {}
