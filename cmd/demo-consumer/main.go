// demo-consumer exercises the car factory demo: it creates a few cars
// through orchestrated dispatch and reads the inventory back.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cluster1-arrowcolony/arrowhead-go/rpc"
)

func main() {
	cfg := rpc.LoadConfig()
	if cfg.SystemName == "" {
		cfg.SystemName = "consumer"
	}
	log := rpc.NewLogger(cfg.LogLevel)
	defer log.Sync()

	fw, err := rpc.New(cfg, log)
	if err != nil {
		log.Fatal("building framework failed", zap.Error(err))
	}
	defer fw.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cars := []map[string]string{
		{"brand": "Toyota", "color": "Red"},
		{"brand": "Volvo", "color": "Blue"},
	}
	for _, car := range cars {
		payload, _ := json.Marshal(car)
		body, err := fw.SendRequest(ctx, "create-car", rpc.Params{Payload: payload})
		if err != nil {
			log.Fatal("create-car failed", zap.Error(err))
		}
		log.Info("car created", zap.ByteString("response", body))
	}

	body, err := fw.SendRequest(ctx, "get-car", rpc.EmptyParams())
	if err != nil {
		log.Fatal("get-car failed", zap.Error(err))
	}
	fmt.Println(string(body))
}
