package main

import (
	"flag"
	"log/slog"
	"math/rand/v2"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gaissmai/bitjoin"
)

var (
	entities  = flag.Int("n", 1_000_000, "number of entity ids")
	seed      = flag.Uint64("seed", 42, "random seed")
	nodeLimit = flag.Int("limit", 0, "max nodes per pool, 0 is unlimited")
	removals  = flag.Int("remove", 10_000, "removals concurrent to the joins")
	jsonLog   = flag.Bool("json", false, "log as JSON")
	verbose   = flag.Bool("v", false, "debug logging")
)

type (
	position struct{ x, y float32 }
	velocity struct{ dx, dy float32 }
	health   struct{ hp int32 }
)

func main() {
	flag.Parse()
	logger := newLogger()

	opts := []bitjoin.Option{bitjoin.WithLogger(logger), bitjoin.WithNodeLimit(*nodeLimit)}

	pos := NewSyncPool[position](opts...)
	vel := NewSyncPool[velocity](opts...)
	hea := NewSyncPool[health](opts...)

	// each pool is filled by its own goroutine, one writer per pool
	start := time.Now()

	var g errgroup.Group
	g.Go(func() error { return fill(pos, 1, 1, func(id uint32) position { return position{float32(id), 0} }) })
	g.Go(func() error { return fill(vel, 2, 2, func(uint32) velocity { return velocity{1, 1} }) })
	g.Go(func() error { return fill(hea, 3, 3, func(uint32) health { return health{100} }) })

	if err := g.Wait(); err != nil {
		logger.Error("fill pools", slog.Any("err", err))
		os.Exit(1)
	}

	logger.Info("pools filled",
		slog.Int("positions", pos.Len()),
		slog.Int("velocities", vel.Len()),
		slog.Int("healths", hea.Len()),
		slog.Duration("took", time.Since(start)),
	)

	matched := join(pos, vel, hea)
	logger.Info("joined", slog.Int("matched", matched))

	// removals and joins run concurrently, serialized by the pool locks
	start = time.Now()

	var rg errgroup.Group
	rg.Go(func() error {
		prng := rand.New(rand.NewPCG(*seed, 4))
		removed := 0
		for range *removals {
			if vel.Remove(prng.Uint32N(uint32(*entities))) {
				removed++
			}
		}
		logger.Debug("removed velocities", slog.Int("removed", removed))
		return nil
	})
	rg.Go(func() error {
		for range 10 {
			logger.Debug("joined", slog.Int("matched", join(pos, vel, hea)))
		}
		return nil
	})
	_ = rg.Wait()

	logger.Info("done",
		slog.Int("matched", join(pos, vel, hea)),
		slog.Int("velocities", vel.Len()),
		slog.Duration("took", time.Since(start)),
	)
}

// fill inserts every n-th entity id with the value from mk.
func fill[T any](sp *SyncPool[T], stream uint64, every uint32, mk func(uint32) T) error {
	prng := rand.New(rand.NewPCG(*seed, stream))

	for id := uint32(0); id < uint32(*entities); id++ {
		// random gaps, the pools overlap only partially
		if prng.Uint32N(every+1) != 0 {
			continue
		}
		if err := sp.Insert(id, mk(id)); err != nil {
			return err
		}
	}
	return nil
}

// join moves all entities with position, velocity and health,
// returns the number of moved entities.
func join(pos *SyncPool[position], vel *SyncPool[velocity], hea *SyncPool[health]) int {
	n := 0
	Join3Sync(pos, vel, hea, func(_ uint32, p *position, v *velocity, h *health) {
		if h.hp <= 0 {
			return
		}
		p.x += v.dx
		p.y += v.dy
		n++
	})
	return n
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}

	hopts := &slog.HandlerOptions{Level: level}
	if *jsonLog {
		return slog.New(slog.NewJSONHandler(os.Stderr, hopts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, hopts))
}
