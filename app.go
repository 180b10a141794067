package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/order-insight/pkg/adapters/datasource"
	"github.com/ekaya-inc/order-insight/pkg/adapters/datasource/mssql"
	"github.com/ekaya-inc/order-insight/pkg/config"
	"github.com/ekaya-inc/order-insight/pkg/directory"
	"github.com/ekaya-inc/order-insight/pkg/handlers"
	"github.com/ekaya-inc/order-insight/pkg/llm"
	"github.com/ekaya-inc/order-insight/pkg/logging"
	"github.com/ekaya-inc/order-insight/pkg/mcp"
	"github.com/ekaya-inc/order-insight/pkg/mcp/tools"
	"github.com/ekaya-inc/order-insight/pkg/repositories"
	"github.com/ekaya-inc/order-insight/pkg/services"
)

// app is the wired process: configuration, adapters and services.
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	connector  *mssql.Connector
	directory  *directory.Directory
	generator  llm.TextGenerator
	prediction *services.PredictionService
	query      *services.QueryService
}

func newApp(configPath string, verbose bool) (*app, error) {
	cfg, err := config.LoadFrom(configPath, Version)
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(cfg.IsDevelopment() || verbose)
	if err != nil {
		return nil, err
	}

	dir, err := directory.Load(cfg.Directory, logger)
	if err != nil {
		return nil, fmt.Errorf("load directory: %w", err)
	}

	generator, err := llm.NewTextGenerator(cfg.LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}

	connector := mssql.NewConnectorFromConfig(cfg.Database, logger)
	policy := services.NewSubstringPolicy(cfg.Schema.SensitiveFragments)
	repo := repositories.NewOrderRepository(cfg.Records, cfg.WriteBack, policy.IsSensitive)

	return &app{
		cfg:        cfg,
		logger:     logger,
		connector:  connector,
		directory:  dir,
		generator:  generator,
		prediction: services.NewPredictionService(connector, generator, repo, cfg.WriteBack, logger),
		query:      services.NewQueryService(connector, generator, policy, logger),
	}, nil
}

// defaultParams is the database configured through SQL_* variables.
func (a *app) defaultParams() datasource.ConnectionParams {
	return datasource.ConnectionParams{
		Server:   a.cfg.Database.Server,
		Database: a.cfg.Database.Database,
		Username: a.cfg.Database.Username,
		Password: a.cfg.Database.Password,
	}
}

func (a *app) resolver() *defaultingDirectory {
	return &defaultingDirectory{Directory: a.directory, defaults: a.defaultParams()}
}

// defaultingDirectory resolves targets that name no company, server id or
// server to the configured defaults. An explicit server with a username but
// no password borrows the configured password.
type defaultingDirectory struct {
	*directory.Directory
	defaults datasource.ConnectionParams
}

func (d *defaultingDirectory) Resolve(t directory.Target) (datasource.ConnectionParams, error) {
	if t.Company == "" && t.ServerID == "" && t.Server == "" {
		params := d.defaults
		if t.Database != "" {
			params = params.WithDatabase(t.Database)
		}
		return params, nil
	}
	if t.Server != "" && t.Username != "" && t.Password == "" {
		t.Password = d.defaults.Password
	}
	return d.Directory.Resolve(t)
}

func (a *app) mcpServer() *mcp.Server {
	return mcp.NewServer(a.cfg.Version, &tools.Deps{
		Directory: a.directory,
		Predictor: a.prediction,
		Asker:     a.query,
		Defaults:  a.defaultParams(),
		Model:     a.generator.Model(),
		Logger:    a.logger,
	}, a.logger)
}

func (a *app) routerDeps() handlers.RouterDeps {
	return handlers.RouterDeps{
		Config:     a.cfg,
		Directory:  a.resolver(),
		Prober:     a.connector,
		Prediction: a.prediction,
		Query:      a.query,
		MCP:        a.mcpServer().NewStreamableHTTPServer(),
		Logger:     a.logger,
	}
}
