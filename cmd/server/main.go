// Command server wires every ClawBuds domain service to a storage backend
// and starts the background scheduler, in the shape of the teacher's
// cmd/server/main.go service-construction sequence.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/chitinlabs/clawbuds-sub000/internal/briefing"
	"github.com/chitinlabs/clawbuds-sub000/internal/clock"
	"github.com/chitinlabs/clawbuds-sub000/internal/config"
	"github.com/chitinlabs/clawbuds-sub000/internal/core"
	"github.com/chitinlabs/clawbuds-sub000/internal/events"
	"github.com/chitinlabs/clawbuds-sub000/internal/heartbeat"
	"github.com/chitinlabs/clawbuds-sub000/internal/layer1"
	"github.com/chitinlabs/clawbuds-sub000/internal/message"
	"github.com/chitinlabs/clawbuds-sub000/internal/notifier"
	"github.com/chitinlabs/clawbuds-sub000/internal/pearl"
	"github.com/chitinlabs/clawbuds-sub000/internal/reflex"
	"github.com/chitinlabs/clawbuds-sub000/internal/relationship"
	"github.com/chitinlabs/clawbuds-sub000/internal/repository"
	"github.com/chitinlabs/clawbuds-sub000/internal/repository/memory"
	"github.com/chitinlabs/clawbuds-sub000/internal/repository/sqlite"
	"github.com/chitinlabs/clawbuds-sub000/internal/scheduler"
	"github.com/chitinlabs/clawbuds-sub000/internal/thread"
	"github.com/chitinlabs/clawbuds-sub000/internal/trust"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (optional)")
	backend := flag.String("backend", "memory", "storage backend: memory | sqlite")
	dbPath := flag.String("db", "clawbuds.db", "sqlite database path (backend=sqlite only)")
	flag.Parse()

	logger := log.New(os.Stderr, "clawbuds: ", log.LstdFlags)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	repo, err := openRepository(*backend, *dbPath)
	if err != nil {
		logger.Fatalf("failed to open repository: %v", err)
	}
	defer repo.Close()

	clk := clock.New()
	bus := events.New(logger)

	relationshipSvc := relationship.New(repo.RelationshipStrengths(), bus, clk, cfg.Relationship.HalflifeDays, logger)
	trustSvc := trust.New(repo.TrustScores(), clk)
	pearlSvc := pearl.New(repo.Pearls(), trustSvc, bus, clk)
	heartbeatSvc := heartbeat.New(repo.Heartbeats(), pearlSvc, bus, clk)
	threadSvc := thread.New(repo.Threads(), bus, clk)
	messageSvc := message.New(repo.Messages(), repo.Friendships(), repo.Claws(), bus, clk, &friendCircleResolver{friendships: repo.Friendships()})

	notif, err := notifier.New(cfg.Host.Type, os.Getenv("OPENCLAW_WEBHOOK_URL"), os.Getenv("OPENCLAW_WEBHOOK_SECRET"), 4, logger)
	if err != nil {
		logger.Fatalf("failed to construct notifier: %v", err)
	}

	engine := reflex.New(repo.Reflexes(), bus, pearlSvc, clk, cfg.Reflex.HardMaxMessagesPerHour, logger)
	l1 := layer1.New(repo.Reflexes(), notif, clk, cfg.Layer1.BatchSize, int64(cfg.Layer1.MaxWaitMs), logger)
	engine.AttachLayer1(l1)

	detector := briefing.New(repo.Reflexes(), nil, clk, briefing.Thresholds{
		CarapaceStaleDays:        cfg.Staleness.CarapaceStaleDays,
		MonotonyThreshold:        cfg.Staleness.MonotonyThreshold,
		GroomRepetitionThreshold: cfg.Staleness.GroomRepetitionThreshold,
	})
	molter := briefing.NewMolter(repo.Reflexes(), repo.Pearls(), nil)

	sched := scheduler.New(logger)
	if err := sched.RegisterMonthlyTrustDecay(trustSvc, cfg.Trust.MonthlyDecay); err != nil {
		logger.Fatalf("failed to register monthly trust decay: %v", err)
	}
	if err := sched.RegisterLayer1AgeTicker(l1); err != nil {
		logger.Fatalf("failed to register layer-1 age ticker: %v", err)
	}
	if err := sched.RegisterNightlyStalenessSweep(stalenessSweep(repo.Claws(), detector)); err != nil {
		logger.Fatalf("failed to register nightly staleness sweep: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	_ = relationshipSvc
	_ = heartbeatSvc
	_ = threadSvc
	_ = messageSvc
	_ = molter

	logger.Printf("clawbuds core online (backend=%s)", *backend)
	select {}
}

func openRepository(backend, dbPath string) (repository.Repository, error) {
	switch backend {
	case "sqlite":
		return sqlite.Open(dbPath)
	default:
		return memory.New(), nil
	}
}

// stalenessSweep runs a full Detector.Analyze pass over every known Claw,
// matching spec §4.8's nightly cadence.
func stalenessSweep(claws repository.Claws, detector *briefing.Detector) scheduler.StalenessSweepFunc {
	return func(ctx context.Context) error {
		all, err := claws.List(ctx)
		if err != nil {
			return err
		}
		for _, c := range all {
			if _, err := detector.Analyze(ctx, c.ID); err != nil {
				return err
			}
		}
		return nil
	}
}

// friendCircleResolver resolves circle names to accepted-friend ids. Named
// circle membership beyond "all friends" is an adjacent concern this build
// does not persist; any circle name simply resolves to the caller's full
// accepted friend list (spec §3 Message Non-goals scope circle *management*
// out, not circle resolution itself).
type friendCircleResolver struct {
	friendships repository.Friendships
}

func (r *friendCircleResolver) ResolveCircles(ctx context.Context, owner string, circleNames []string) ([]string, error) {
	friendships, err := r.friendships.ListByClaw(ctx, owner, core.FriendshipAccepted)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, f := range friendships {
		if f.Requester == owner {
			out = append(out, f.Accepter)
		} else {
			out = append(out, f.Requester)
		}
	}
	return out, nil
}
