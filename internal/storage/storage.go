// Package storage stores and retrieves raw document bytes behind a
// driver-selectable provider.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/zyalhor1961/corematch-web-sub006/internal/config"
	"github.com/zyalhor1961/corematch-web-sub006/pkg/telemetry"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	DriverLocal  = "local"
	DriverGCS    = "gcs"
	DriverMemory = "memory"
)

var ErrNotFound = errors.New("object_not_found")

// Provider is an object store keyed by opaque paths. Keys are produced
// by the document service and never by request input.
type Provider interface {
	Name() string
	Put(ctx context.Context, key string, content []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

var Module = fx.Module("storage",
	fx.Provide(New),
)

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Log       *zap.Logger
	Metrics   *telemetry.Metrics
}

func New(p Params) (Provider, error) {
	log := p.Log.Named("storage")

	var (
		driver Provider
		err    error
	)
	switch p.Config.Storage.Driver {
	case DriverGCS:
		driver, err = newGCS(p.Lifecycle, p.Config.Storage)
	case DriverMemory:
		driver = NewMemory()
	default:
		driver, err = newLocal(p.Config.Storage.LocalDir)
	}
	if err != nil {
		return nil, err
	}

	log.Info("storage driver ready", zap.String("driver", driver.Name()))
	return &instrumented{next: driver, metrics: p.Metrics}, nil
}

// instrumented wraps a driver with per-operation metrics.
type instrumented struct {
	next    Provider
	metrics *telemetry.Metrics
}

func (i *instrumented) Name() string { return i.next.Name() }

func (i *instrumented) Put(ctx context.Context, key string, content []byte, contentType string) error {
	start := time.Now()
	err := i.next.Put(ctx, key, content, contentType)
	i.record("put", start, err)
	return err
}

func (i *instrumented) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	content, err := i.next.Get(ctx, key)
	i.record("get", start, err)
	return content, err
}

func (i *instrumented) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := i.next.Delete(ctx, key)
	i.record("delete", start, err)
	return err
}

func (i *instrumented) record(op string, start time.Time, err error) {
	if i.metrics == nil {
		return
	}
	status := "ok"
	if err != nil && !errors.Is(err, ErrNotFound) {
		status = "error"
	}
	i.metrics.RecordStorageOp(i.next.Name(), op, status, time.Since(start))
}
