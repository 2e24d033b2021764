package serv

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/treeql/treeql/auth"
	"github.com/treeql/treeql/cdc"
	"github.com/treeql/treeql/core"
	"github.com/treeql/treeql/rag"
	"github.com/treeql/treeql/internal/util"
)

var version string

// SetVersion records the build version reported in the startup log.
func SetVersion(v string) { version = v }

const serverName = "TreeQL"

// Service is the running gateway process: DB pool, schema catalog,
// HTTP surface and the background pipelines.
type Service struct {
	conf *Config
	log  *zap.SugaredLogger
	zlog *zap.Logger

	db  *core.DB
	run core.Runner
	gw  *core.Gateway

	auth  *auth.Provider
	chain *rag.Chain
	etl   *rag.ETL

	srv *http.Server
}

// NewService wires the gateway: DB pool, schema catalog, auth and the
// optional AI surface.
func NewService(conf *Config) (*Service, error) {
	zlog := util.NewLogger(conf.ShouldUseJSONLogs())
	log := zlog.Sugar()

	sqlDB, err := NewDB(conf, log)
	if err != nil {
		return nil, err
	}
	db := core.NewDB(sqlDB, log)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	schema, err := core.LoadSchema(ctx, db, log)
	if err != nil {
		return nil, err
	}

	s := &Service{
		conf: conf,
		log:  log,
		zlog: zlog,
		db:   db,
		run:  db,
		gw:   core.NewGateway(db, schema, log),
		auth: auth.NewProvider(conf.Auth.Secret, conf.TokenExpiry()),
	}

	if conf.Vector.URL != "" {
		store := rag.NewVectorStore(conf.Vector)
		embed := rag.NewEmbedder(conf.LLM.Embedding)
		chat := rag.NewChat(conf.LLM.Conversation)
		s.chain = rag.NewChain(store, embed, chat)
		s.etl = rag.NewETL(db, store, embed, log)
	}
	return s, nil
}

// Start runs the background pipelines and blocks serving HTTP until
// an interrupt arrives.
func (s *Service) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.startETL(ctx)
	s.startCDC(ctx)
	return s.startHTTP(ctx)
}

// startETL rebuilds the vector collections in the background. The
// HTTP surface never waits on it.
func (s *Service) startETL(ctx context.Context) {
	if s.etl == nil {
		return
	}
	manifest, err := rag.LoadManifest(afero.NewOsFs(), s.conf.ConfigDir())
	if err != nil {
		s.log.Errorf("vector manifest: %s", err)
		return
	}
	if manifest == nil {
		return
	}
	go func() {
		if err := s.etl.Run(ctx, manifest); err != nil {
			s.log.Errorf("vector etl: %s", err)
		} else {
			s.log.Info("vector etl complete")
		}
	}()
}

// startCDC tails the binlog in the background when enabled.
func (s *Service) startCDC(ctx context.Context) {
	if !s.conf.CDC.Enable {
		return
	}
	listener := cdc.NewListener(s.conf.CDC, &logSink{log: s.log}, s.log)
	go func() {
		if err := listener.Run(ctx); err != nil && ctx.Err() == nil {
			s.log.Errorf("cdc: %s", err)
		}
	}()
}

// logSink is the default CDC sink: it surfaces row changes in the log.
type logSink struct {
	log *zap.SugaredLogger
}

func (l *logSink) OnInsert(schema, table string, rows [][]any) {
	l.log.Infow("cdc.insert", "table", schema+"."+table, "rows", len(rows))
}

func (l *logSink) OnUpdate(schema, table string, before, after []any) {
	l.log.Infow("cdc.update", "table", schema+"."+table, "before", before, "after", after)
}

func (l *logSink) OnDelete(schema, table string, rows [][]any) {
	l.log.Infow("cdc.delete", "table", schema+"."+table, "rows", len(rows))
}

// startHTTP serves the API with a graceful shutdown on interrupt.
func (s *Service) startHTTP(ctx context.Context) error {
	r := chi.NewRouter()
	s.routes(r)

	s.srv = &http.Server{
		Addr:              s.conf.hostPort(),
		Handler:           setServerHeader(r),
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		MaxHeaderBytes:    1 << 20,
		ReadHeaderTimeout: 10 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt)
		select {
		case <-sigint:
		case <-ctx.Done():
		}

		if err := s.srv.Shutdown(context.Background()); err != nil {
			s.log.Warnf("shutdown: %s", err)
		}
		close(idleConnsClosed)
	}()

	s.srv.RegisterOnShutdown(func() {
		if err := s.db.SQLDB().Close(); err == nil {
			s.log.Info("closed database connection")
		}
		s.log.Info("shutdown complete")
	})

	ver := version
	if ver == "" {
		ver = "not-set"
	}
	s.zlog.Info("TreeQL started",
		zap.String("version", ver),
		zap.String("host-port", s.conf.hostPort()),
		zap.String("app-name", s.conf.AppName),
		zap.Bool("production", s.conf.Production),
	)

	l, err := net.Listen("tcp", s.conf.hostPort())
	if err != nil {
		return err
	}
	if err := s.srv.Serve(l); err != http.ErrServerClosed {
		return err
	}
	<-idleConnsClosed
	return nil
}

// Set the server header
func setServerHeader(h http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", serverName)
		h.ServeHTTP(w, r)
	}
	return http.HandlerFunc(fn)
}
