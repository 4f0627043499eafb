// fakehub serves a minimal Home Assistant websocket API that discharges a set
// of battery sensors, so the observer can be run end to end without a hub.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"battery-observer/src/data_source/homeassistant/hatest"
	"battery-observer/src/logger"

	"github.com/gin-gonic/gin"
)

// sensor is one simulated battery
type sensor struct {
	id    string
	level float64
	drain float64
}

func main() {
	addr := flag.String("addr", ":8123", "listen address")
	token := flag.String("token", "fake-token", "access token the hub accepts")
	entities := flag.String("entities", "sensor.phone_battery,sensor.door_battery", "comma separated entity ids")
	interval := flag.Duration("interval", 5*time.Second, "time between state_changed events")
	flag.Parse()

	log := logger.NewLogger(nil, "FakeHub")
	hub := hatest.NewHub(*token)

	var sensors []*sensor
	for _, id := range strings.Split(*entities, ",") {
		if id = strings.TrimSpace(id); id != "" {
			sensors = append(sensors, &sensor{id: id, level: 60 + rand.Float64()*40, drain: 0.5 + rand.Float64()*2})
		}
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/api/websocket", gin.WrapH(hub))
	router.POST("/api/services/:domain/:service", func(c *gin.Context) {
		var body map[string]interface{}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
		log.Info("%s.%s called: %v", c.Param("domain"), c.Param("service"), body["message"])
		c.JSON(http.StatusOK, []interface{}{})
	})

	srv := &http.Server{Addr: *addr, Handler: router}
	go func() {
		log.Info("Fake hub listening on %s (token %q)", *addr, *token)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Critical("Server failed: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			_ = srv.Shutdown(shutdownCtx)
			cancel()
			hub.Close()
			return
		case <-ticker.C:
			for _, s := range sensors {
				if err := hub.SendStateChanged(s.id, s.next()); err != nil {
					log.Debug("No subscriber for %s: %v", s.id, err)
				}
			}
		}
	}
}

// next advances the simulation and returns the state string to publish.
// Roughly one event in twenty reports the entity as unavailable.
func (s *sensor) next() string {
	if rand.IntN(20) == 0 {
		return "unavailable"
	}
	s.level -= s.drain
	if s.level < 0 {
		s.level = 100
	}
	return fmt.Sprintf("%.1f", s.level)
}
