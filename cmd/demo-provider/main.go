// demo-provider runs a toy car factory: it registers a create-car and a
// get-car service with the local cloud and serves them until interrupted.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cluster1-arrowcolony/arrowhead-go/provider"
	"github.com/cluster1-arrowcolony/arrowhead-go/rpc"
)

type car struct {
	Brand string `json:"brand"`
	Color string `json:"color"`
}

type factory struct {
	mu   sync.Mutex
	cars []car
}

func (f *factory) createCar(ctx context.Context, p provider.Params, payload json.RawMessage) (any, error) {
	var c car
	if err := json.Unmarshal(payload, &c); err != nil {
		return nil, fmt.Errorf("bad car payload: %w", err)
	}
	f.mu.Lock()
	f.cars = append(f.cars, c)
	f.mu.Unlock()
	return map[string]string{"status": "success", "message": "Car created successfully"}, nil
}

func (f *factory) getCar(ctx context.Context, p provider.Params) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if brand := p.Query.Get("brand"); brand != "" {
		matches := []car{}
		for _, c := range f.cars {
			if c.Brand == brand {
				matches = append(matches, c)
			}
		}
		return matches, nil
	}
	out := make([]car, len(f.cars))
	copy(out, f.cars)
	return out, nil
}

func main() {
	cfg := rpc.LoadConfig()
	if cfg.SystemName == "" {
		cfg.SystemName = "carfactory"
	}
	log := rpc.NewLogger(cfg.LogLevel)
	defer log.Sync()

	f := &factory{}
	rt, err := provider.NewRuntime(cfg, log,
		provider.HandlePayload("create-car", f.createCar),
		provider.Handle("get-car", f.getCar),
	)
	if err != nil {
		log.Fatal("building runtime failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rt.Start(ctx); err != nil {
		log.Fatal("starting provider failed", zap.Error(err))
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := rt.Stop(shutdownCtx); err != nil {
		log.Warn("shutdown incomplete", zap.Error(err))
		os.Exit(1)
	}
}
