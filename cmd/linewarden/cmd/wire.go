package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"github.com/solatis/linewarden/internal/assets"
	"github.com/solatis/linewarden/internal/bulk"
	"github.com/solatis/linewarden/internal/core/api"
	"github.com/solatis/linewarden/internal/core/auth"
	"github.com/solatis/linewarden/internal/core/config"
	"github.com/solatis/linewarden/internal/core/db"
	"github.com/solatis/linewarden/internal/core/rpc"
	"github.com/solatis/linewarden/internal/logging"
	"github.com/solatis/linewarden/internal/orders"
	"github.com/solatis/linewarden/internal/query"
	"github.com/solatis/linewarden/internal/rules"
	"github.com/solatis/linewarden/internal/source"
)

// app holds the loaded configuration and logger shared by every command.
type app struct {
	cfg    *config.Config
	logger *logrus.Logger
}

// setup loads configuration and applies the persistent flag overrides.
func setup() (*app, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger}, nil
}

func (a *app) templates() query.Templates {
	return query.MergeTemplates(query.DefaultTemplates(a.cfg.Source.PageSize), a.cfg.Queries)
}

func (a *app) source() (*source.RESTClient, error) {
	return source.NewRESTClient(source.RESTConfig{
		BaseURL:    a.cfg.Source.BaseURL,
		APIVersion: a.cfg.Source.APIVersion,
		Token:      a.cfg.SourceToken,
		Timeout:    a.cfg.Source.Timeout,
	}, nil, a.logger)
}

// service builds the in-process validation pipeline.
func (a *app) service(src source.RecordSource) (*api.ValidatorService, error) {
	engine, err := rules.NewEngine(rules.Config{
		Basic:       a.cfg.Validations.Basic,
		ReasonBased: a.cfg.Validations.ReasonBased,
		SystemUsers: a.cfg.Validations.SystemUsers,
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to compile checks: %w", err)
	}
	return api.NewValidatorService(assets.NewAssembler(src, a.templates(), a.logger), engine, a.logger)
}

// validator returns the transport bulk runs and the validate command call.
// With server.address set it is a gRPC client, signed when a secret is
// configured; otherwise the pipeline runs in process.
func (a *app) validator(src source.RecordSource) (bulk.Validator, func() error, error) {
	if a.cfg.Server.Address == "" {
		svc, err := a.service(src)
		if err != nil {
			return nil, nil, err
		}
		return svc, func() error { return nil }, nil
	}

	var opts []grpc.DialOption
	id, secret, ok, err := config.SigningSecret()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load HMAC secret: %w", err)
	}
	if ok {
		opts = append(opts, grpc.WithUnaryInterceptor(auth.NewSigner(id, secret).UnaryClientInterceptor()))
	}
	client, err := rpc.Dial(a.cfg.Server.Address, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to dial %s: %w", a.cfg.Server.Address, err)
	}
	a.logger.WithFields(logrus.Fields{
		"address": a.cfg.Server.Address,
		"signed":  ok,
	}).Info("using remote validation service")
	return client, client.Close, nil
}

func (a *app) retriever(src source.RecordSource) (*orders.Retriever, error) {
	loc, err := a.cfg.Orders.Location()
	if err != nil {
		return nil, err
	}
	return orders.NewRetriever(src, a.templates(), orders.RetrieverConfig{
		Strategy:     a.cfg.Orders.Strategy,
		Reason:       a.cfg.Orders.Reason,
		ValidReasons: a.cfg.Orders.ValidReasons,
		Location:     loc,
	}, a.logger), nil
}

func (a *app) classifier() *orders.Classifier {
	return orders.NewClassifier(orders.ClassifierConfig{
		IgnoreReasons: a.cfg.Orders.IgnoreReasons,
		IgnoreTypes:   a.cfg.Orders.IgnoreTypes,
	}, a.logger)
}

func (a *app) executor(v bulk.Validator) *bulk.Executor {
	return bulk.NewExecutor(v, bulk.ExecutorConfig{
		Workers:       a.cfg.Bulk.Workers,
		Pause:         a.cfg.Bulk.Pause,
		RatePerSecond: a.cfg.Bulk.MaxRequestsPerSecond,
		CallTimeout:   a.cfg.Bulk.CallTimeout,
		ProgressEvery: a.cfg.Bulk.ProgressEvery,
	}, a.logger)
}

// store opens the run history database. It returns a nil store when no
// database is configured.
func (a *app) store() (*db.Store, func(), error) {
	if a.cfg.Database.URL == "" {
		return nil, func() {}, nil
	}
	database, err := db.Open(a.cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() { database.Close() }

	statuses, err := db.MigrateStatus(database)
	if err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("failed to check migrations: %w", err)
	}
	for _, s := range statuses {
		if !s.Applied {
			closeDB()
			return nil, nil, fmt.Errorf("migration %s not applied - run 'linewarden migrate up' first", s.ID)
		}
	}

	store, err := db.NewStore(database)
	if err != nil {
		closeDB()
		return nil, nil, err
	}
	return store, closeDB, nil
}
