package app

import (
	"context"
	"fmt"
	"time"

	"github.com/aquamarinepk/aqm"
	aqmevents "github.com/aquamarinepk/aqm/events"
	"github.com/aquamarinepk/aqm/middleware"

	"github.com/appetiteclub/tourbook/pkg"
	"github.com/appetiteclub/tourbook/pkg/event"
	"github.com/appetiteclub/tourbook/services/bookingsync/internal/api"
	"github.com/appetiteclub/tourbook/services/bookingsync/internal/authority"
	"github.com/appetiteclub/tourbook/services/bookingsync/internal/booking"
	"github.com/appetiteclub/tourbook/services/bookingsync/internal/engine"
	"github.com/appetiteclub/tourbook/services/bookingsync/internal/store"
)

const (
	AppName    = "bookingsync"
	AppVersion = "0.1.0"
)

// App encapsulates the booking sync service application
type App struct {
	config *aqm.Config
	logger aqm.Logger
	micro  *aqm.Micro
	engine *engine.Engine
}

func New(config *aqm.Config, logger aqm.Logger) (*App, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &App{
		config: config,
		logger: logger,
	}, nil
}

// Initialize wires the authority client, the engine and the event transport.
func (a *App) Initialize(ctx context.Context) error {
	bookingsURL, _ := a.config.GetString("services.bookings.url")
	if bookingsURL == "" {
		return fmt.Errorf("services.bookings.url is required")
	}
	bookingsDA := authority.NewBookingsDataAccess(aqm.NewServiceClient(bookingsURL), a.logger)

	var lifecycles []interface{}
	var publisher aqmevents.Publisher
	var changes aqmevents.Subscriber

	natsURL, _ := a.config.GetString("nats.url")
	if natsURL != "" {
		natsPublisher, err := pkg.NewNATSPublisher(natsURL)
		if err != nil {
			return err
		}
		publisher = natsPublisher
		lifecycles = append(lifecycles, aqm.LifecycleHooks{
			OnStop: func(context.Context) error { return natsPublisher.Close() },
		})

		sub, closer, err := a.changeSubscriber(ctx, natsURL)
		if err != nil {
			return err
		}
		changes = sub
		lifecycles = append(lifecycles, closer)
	} else {
		a.logger.Info("nats.url not set, notifications stay in process and the authority feed is off")
	}

	notifier := engine.NewNotifier(publisher, a.logger)
	a.engine = engine.New(bookingsDA, store.New(a.logger), notifier, a.logger)
	feed := engine.NewAuthorityFeed(changes, a.engine, a.logger)

	if actor, ok := a.configuredActor(); ok {
		a.engine.SignIn(actor)
	}

	handler := api.NewHandler(a.engine, a.logger)

	stack := middleware.DefaultStack(middleware.StackOptions{
		Logger:      a.logger,
		DisableCORS: false,
	})

	lifecycles = append([]interface{}{a.engine, feed}, lifecycles...)
	lifecycles = append(lifecycles, aqm.LifecycleHooks{
		OnStart: func(ctx context.Context) error {
			if !a.engine.Actor().IsAuthenticated() {
				return nil
			}
			if err := a.engine.Load(ctx); err != nil {
				a.logger.Info("initial booking load failed", "error", err)
			}
			return nil
		},
	})

	options := []aqm.Option{
		aqm.WithConfig(a.config),
		aqm.WithLogger(a.logger),
		aqm.WithHTTPMiddleware(stack...),
		aqm.WithHTTPServerModules("web.port", handler),
		aqm.WithLifecycle(lifecycles...),
		aqm.WithHealthChecks(AppName),
	}

	a.micro = aqm.NewMicro(options...)
	return nil
}

// changeSubscriber picks the durable JetStream consumer when
// nats.stream.enabled is "true" and plain NATS otherwise.
func (a *App) changeSubscriber(ctx context.Context, natsURL string) (aqmevents.Subscriber, aqm.LifecycleHooks, error) {
	streamEnabled, _ := a.config.GetString("nats.stream.enabled")
	if streamEnabled == "true" {
		consumer, _ := a.config.GetString("nats.stream.consumer")
		if consumer == "" {
			consumer = AppName
		}
		stream, err := pkg.NewNATSStream(ctx, pkg.NATSStreamConfig{
			URL:          natsURL,
			StreamName:   "BOOKING_CHANGES",
			Topic:        event.AuthorityTopic,
			ConsumerName: consumer,
			MaxAge:       24 * time.Hour,
		}, a.logger)
		if err != nil {
			return nil, aqm.LifecycleHooks{}, err
		}
		a.logger.Info("NATS stream initialized for authority changes")
		return stream, aqm.LifecycleHooks{
			OnStop: func(context.Context) error { return stream.Close() },
		}, nil
	}

	subscriber, err := pkg.NewNATSSubscriber(natsURL, a.logger)
	if err != nil {
		return nil, aqm.LifecycleHooks{}, err
	}
	return subscriber, aqm.LifecycleHooks{
		OnStop: func(context.Context) error { return subscriber.Close() },
	}, nil
}

// configuredActor reads an optional service actor, used when the engine runs
// on behalf of a single operator.
func (a *App) configuredActor() (booking.Actor, bool) {
	id, _ := a.config.GetString("actor.id")
	roleName, _ := a.config.GetString("actor.role")
	role, ok := booking.ParseRole(roleName)
	if id == "" || !ok || role == booking.RoleNone {
		return booking.Anonymous(), false
	}

	name, _ := a.config.GetString("actor.name")
	email, _ := a.config.GetString("actor.email")
	return booking.Actor{ID: id, Role: role, Name: name, Email: email}, true
}

func (a *App) Run(ctx context.Context) error {
	a.logger.Infof("Starting %s(%s)", AppName, AppVersion)
	if err := a.micro.Run(ctx); err != nil {
		return err
	}
	a.logger.Infof("%s(%s) stopped", AppName, AppVersion)
	return nil
}
