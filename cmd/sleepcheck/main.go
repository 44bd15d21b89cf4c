// Command sleepcheck runs the infant sleep-check daemon: it follows each
// child's sleep log, keeps the 15-minute check countdown and raises alerts
// before a check falls due.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/sweeney/sleepcheck/internal/action"
	"github.com/sweeney/sleepcheck/internal/alert"
	"github.com/sweeney/sleepcheck/internal/card"
	"github.com/sweeney/sleepcheck/internal/config"
	"github.com/sweeney/sleepcheck/internal/gpio"
	"github.com/sweeney/sleepcheck/internal/logging"
	"github.com/sweeney/sleepcheck/internal/logic"
	"github.com/sweeney/sleepcheck/internal/metrics"
	"github.com/sweeney/sleepcheck/internal/mqtt"
	"github.com/sweeney/sleepcheck/internal/status"
	"github.com/sweeney/sleepcheck/internal/store"
	"github.com/sweeney/sleepcheck/internal/store/pgstore"
	"github.com/sweeney/sleepcheck/internal/store/redisstore"
	"github.com/sweeney/sleepcheck/internal/web"
)

func main() {
	configPath := flag.String("config", "", "YAML config path (default $CONFIG_PATH, then ./config.yaml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, "sleepcheck")
	if err != nil {
		log.Fatalf("fatal: init logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("fatal", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	loc := cfg.Facility.Location
	metrics.Init(nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	var publisher interface {
		mqtt.Publisher
		mqtt.ConnectionStatus
	} = mqtt.Discard{}
	if cfg.MQTT.Enabled {
		rp, err := mqtt.NewRealPublisher(mqtt.Options{
			Broker:     cfg.MQTT.Broker,
			ClientID:   cfg.MQTT.ClientID,
			Topics:     mqtt.Topics{Prefix: cfg.MQTT.TopicPrefix},
			BufferSize: cfg.MQTT.BufferSize,
			Logger:     logger.Named("mqtt"),
		})
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		publisher = rp
	}
	defer publisher.Close()

	permission, err := permissionState(cfg)
	if err != nil {
		return err
	}

	var (
		channels []alert.Channel
		audio    *alert.Audio
		gesture  action.Gesture
	)
	if !cfg.Alert.MuteAudio {
		audio = alert.NewAudio(alert.ExecOpener(cfg.Alert.AudioCommand), cfg.Alert.Tone())
		defer audio.Teardown()
		channels = append(channels, audio)
		gesture = audio
	}
	var vibrator alert.Vibrator
	if cfg.Alert.HapticEnabled {
		motor, err := gpio.NewRealMotor(cfg.Alert.HapticChip, cfg.Alert.HapticPin)
		if err != nil {
			logger.Warn("haptic motor unavailable, continuing without vibration", zap.Error(err))
		} else {
			defer motor.Close()
			vibrator = gpio.NewVibrator(motor)
		}
	}
	channels = append(channels,
		alert.NewHaptic(vibrator, alert.DefaultPattern),
		alert.NewSystemNotification(permission, mqtt.Notifier{Publisher: publisher}, cfg.Alert.NotificationTitle),
	)
	dispatcher := alert.NewAsync(alert.NewDispatcher(logger.Named("alert"), channels...), cfg.Alert.Timeout)
	defer dispatcher.Close()

	cards := make([]*card.Card, 0, len(cfg.Facility.Children))
	for _, child := range cfg.Facility.Children {
		cards = append(cards, card.New(card.Options{
			ChildID:  child.ID,
			Name:     child.Name,
			Store:    st,
			Alerter:  dispatcher,
			Location: loc,
			Logger:   logger.Named("card"),
		}))
	}
	manager := card.NewManager(cards...)

	controller := action.New(action.Options{
		Store: st,
		Identity: action.ContextIdentity{
			Fallback: action.StaticIdentity(logic.Staff{Initials: cfg.Operator.Initials, ID: cfg.Operator.ID}),
		},
		Countdowns: manager,
		Sink:       publisher,
		Gesture:    gesture,
		Children:   cfg.ChildIDs(),
		Location:   loc,
		Logger:     logger.Named("action"),
	})

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		Facility:    cfg.Facility.Name,
		Timezone:    loc.String(),
		StoreDriver: cfg.Store.Driver,
		HeartbeatMs: cfg.Heartbeat.Interval.Milliseconds(),
		Broker:      brokerLabel(cfg),
		HTTPAddr:    cfg.HTTP.Addr,
		AudioPlayer: audioLabel(cfg),
		HapticPin:   hapticLabel(cfg, vibrator),
	})
	tracker.SetPermission(string(permission.Permission()))

	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		logger.Warn("failed to publish startup event", zap.Error(err))
	}

	var cardsDone sync.WaitGroup
	cardsDone.Add(1)
	go func() {
		defer cardsDone.Done()
		manager.Run(ctx, card.SecondTicker)
	}()

	if cfg.HTTP.Addr != "" {
		srv := web.New(web.Options{
			Addr:       cfg.HTTP.Addr,
			Tracker:    tracker,
			Cards:      manager,
			Actions:    controller,
			Store:      st,
			Permission: permission,
			Location:   loc,
			Logger:     logger.Named("web"),
		})
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", zap.Error(err))
			}
		}()
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
			defer scancel()
			srv.Shutdown(sctx)
		}()
		logger.Info("http server listening", zap.String("addr", cfg.HTTP.Addr))
	}

	logger.Info("started",
		zap.String("facility", cfg.Facility.Name),
		zap.Strings("children", cfg.ChildIDs()),
		zap.String("store", cfg.Store.Driver),
		zap.Bool("mqtt", cfg.MQTT.Enabled),
		zap.Duration("heartbeat", cfg.Heartbeat.Interval),
	)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	err = runLoop(publisher, publisher, tracker, manager, permission, cfg.Heartbeat.Interval, time.Now, ticker.C, sigCh, logger)

	// Stop countdowns before the alert pipeline and store close underneath them.
	cancel()
	cardsDone.Wait()
	return err
}

// openStore connects the configured event log and returns its closer.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Store, func(), error) {
	loc := cfg.Facility.Location
	switch cfg.Store.Driver {
	case config.DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pctx, pcancel := context.WithTimeout(ctx, 5*time.Second)
		defer pcancel()
		if err := client.Ping(pctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
		st := redisstore.New(client, redisstore.Options{
			KeyPrefix: cfg.Store.KeyPrefix,
			Location:  loc,
			Retention: cfg.Store.Retention,
		}, logger.Named("redisstore"))
		return st, func() { client.Close() }, nil

	case config.DriverPostgres:
		st, err := pgstore.Open(cfg.Postgres.DSN, loc, logger.Named("pgstore"))
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := st.EnsureSchema(ctx); err != nil {
			st.Close()
			return nil, nil, fmt.Errorf("postgres schema: %w", err)
		}
		return st, func() { st.Close() }, nil
	}

	mem := store.NewMemory(loc)
	logger.Warn("using in-memory event log; records are lost on restart")
	return mem, func() { mem.Close() }, nil
}

// permissionState seeds the notification grant from config.
func permissionState(cfg *config.Config) (*alert.PermissionState, error) {
	perm, err := alert.ParsePermission(cfg.Alert.NotificationPermission)
	if err != nil {
		return nil, fmt.Errorf("alert notification permission: %w", err)
	}
	return alert.NewPermissionState(perm), nil
}

// snapshotter is the part of card.Manager the run loop reads.
type snapshotter interface {
	Snapshots() []card.Snapshot
}

func runLoop(publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, cards snapshotter, permission alert.PermissionProvider, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal, logger *zap.Logger) error {
	lastHeartbeat := now()

	refresh := func() {
		if cards != nil {
			tracker.UpdateCards(cards.Snapshots())
		}
		if mqttStatus != nil {
			tracker.SetMQTTConnected(mqttStatus.IsConnected())
		}
		if permission != nil {
			tracker.SetPermission(string(permission.Permission()))
		}
	}

	for {
		select {
		case s := <-sig:
			logger.Info("shutting down", zap.String("signal", s.String()))
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			refresh()
			snap := tracker.Snapshot()
			event := mqtt.SystemEvent{
				Timestamp:  now(),
				Event:      "SHUTDOWN",
				Reason:     signalName,
				Retained:   true,
				RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", signalName),
			}
			if err := publisher.PublishSystem(event); err != nil {
				logger.Warn("failed to publish shutdown event", zap.Error(err))
			}
			return nil

		case <-tick:
			t := now()
			refresh()

			if heartbeat <= 0 || t.Sub(lastHeartbeat) < heartbeat {
				continue
			}
			lastHeartbeat = t
			snap := tracker.Snapshot()
			logger.Debug("heartbeat", zap.Duration("uptime", snap.Uptime()))
			hbEvent := mqtt.SystemEvent{
				Timestamp:  t,
				Event:      "HEARTBEAT",
				RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
			}
			if err := publisher.PublishSystem(hbEvent); err != nil {
				logger.Warn("heartbeat publish error", zap.Error(err))
			}
		}
	}
}

func brokerLabel(cfg *config.Config) string {
	if !cfg.MQTT.Enabled {
		return ""
	}
	return cfg.MQTT.Broker
}

func audioLabel(cfg *config.Config) string {
	if cfg.Alert.MuteAudio || len(cfg.Alert.AudioCommand) == 0 {
		return ""
	}
	return cfg.Alert.AudioCommand[0]
}

func hapticLabel(cfg *config.Config, vibrator alert.Vibrator) int {
	if vibrator == nil {
		return 0
	}
	return cfg.Alert.HapticPin
}
