package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/canto-lessons/pkg/jobs"
)

const (
	jobCleanupExports = "exports.cleanup"
	jobPrunePortal    = "portal.prune"
	jobPruneSessions  = "sessions.prune"
)

type exportCleaner interface {
	CleanupExports(ttl time.Duration) ([]string, error)
}

type pruner interface {
	Prune() int
}

func newMaintenanceQueue(exports exportCleaner, portal, sessions pruner, logr *zap.Logger) *jobs.Queue {
	mux := jobs.NewMux()
	mux.Handle(jobCleanupExports, func(context.Context, jobs.Job) error {
		removed, err := exports.CleanupExports(0)
		if err != nil {
			return err
		}
		if len(removed) > 0 {
			logr.Info("expired exports removed", zap.Int("count", len(removed)))
		}
		return nil
	})
	mux.Handle(jobPrunePortal, func(context.Context, jobs.Job) error {
		if n := portal.Prune(); n > 0 {
			logr.Debug("idle portal sessions pruned", zap.Int("count", n))
		}
		return nil
	})
	mux.Handle(jobPruneSessions, func(context.Context, jobs.Job) error {
		if n := sessions.Prune(); n > 0 {
			logr.Debug("idle sessions pruned", zap.Int("count", n))
		}
		return nil
	})
	return jobs.NewQueue("maintenance", mux.Dispatch, jobs.QueueConfig{MaxRetries: 2, Logger: logr})
}
