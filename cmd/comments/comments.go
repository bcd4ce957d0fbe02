package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rtemka/comments/domain"
	"github.com/rtemka/comments/pkg/api"
	"github.com/rtemka/comments/pkg/memdb"
	"github.com/rtemka/comments/pkg/mongodb"
	"github.com/rtemka/comments/pkg/postgres"
	"github.com/rtemka/comments/pkg/sqlite"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// имя переменной окружения
const (
	portEnv    = "COMMENTS_PORT"
	dbURL      = "DB_URL"
	mongoDBEnv = "MONGO_DB"
	originEnv  = "CORS_ORIGIN"
)

// настройки базы данных
const (
	maxConns        = 50
	maxConnIdleTime = 4 * time.Minute
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// переменные можно найти не только в файле
	_ = godotenv.Load()

	zl := zapLogger(os.Stdout)
	defer func() {
		_ = zl.Sync()
	}()

	em, err := envs(dbURL, portEnv)
	if err != nil {
		return err
	}

	db, err := connectDB(em[dbURL], 5, time.Second, zl)
	if err != nil {
		return err
	}
	defer db.Close()

	var wg sync.WaitGroup
	wg.Add(1)

	servers := []*http.Server{
		startRestServer(em[portEnv], db, zl, &wg),
	}

	// логика закрытия сервера
	cancelation(zl, servers)

	wg.Wait()

	return nil
}

// cancelation отслеживает сигналы прерывания и,
// если они получены, "мягко" гасит серверы.
func cancelation(logger *zap.Logger, servers []*http.Server) {
	// ловим сигналов прерывания, типа CTRL-C
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		sig := <-stop // получили сигнал
		sl := logger.Sugar()
		sl.Warnf("got signal %q", sig)

		// закрываем серверы
		ctx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		for i := range servers {
			if err := servers[i].Shutdown(ctx); err != nil {
				sl.Info(err)
			}
		}
	}()
}

// envs собирает ожидаемые переменные окружения,
// возвращает ошибку, если какая-либо из переменных env не задана.
func envs(envs ...string) (map[string]string, error) {
	em := make(map[string]string, len(envs))
	var ok bool
	for _, env := range envs {
		if em[env], ok = os.LookupEnv(env); !ok {
			return nil, fmt.Errorf("environment variable %q must be set", env)
		}
	}
	return em, nil
}

var ErrRetryExceeded = errors.New("connect DB: number of retries exceeded")

// backend - вид хранилища, определяется по схеме строки подключения.
type backend int

const (
	backendSQLite backend = iota
	backendMongo
	backendPostgres
	backendMemory
)

func (b backend) String() string {
	return []string{"sqlite", "mongodb", "postgres", "memory"}[b]
}

func backendOf(connstr string) backend {
	switch {
	case connstr == "memory":
		return backendMemory
	case strings.HasPrefix(connstr, "mongodb://"), strings.HasPrefix(connstr, "mongodb+srv://"):
		return backendMongo
	case strings.HasPrefix(connstr, "postgres://"), strings.HasPrefix(connstr, "postgresql://"):
		return backendPostgres
	default:
		return backendSQLite
	}
}

// open подключается к хранилищу и подготавливает схему.
func open(connstr string) (domain.Repository, error) {
	switch backendOf(connstr) {
	case backendMemory:
		return memdb.New(), nil

	case backendMongo:
		return mongodb.New(connstr, os.Getenv(mongoDBEnv))

	case backendPostgres:
		db, err := postgres.New(connstr)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(context.Background()); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil

	default:
		db, err := sqlite.New(connstr)
		if err != nil {
			return nil, err
		}
		db.DB.SetConnMaxIdleTime(maxConnIdleTime)
		db.DB.SetMaxOpenConns(maxConns)
		db.DB.SetMaxIdleConns(maxConns)

		if err := db.Migrate(context.Background()); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}
}

func connectDB(connstr string, retries int, interval time.Duration, logger *zap.Logger) (domain.Repository, error) {

	b := backendOf(connstr)
	for i := 0; i < retries; i++ {
		db, err := open(connstr)
		if err != nil {
			logger.Warn("connect DB", zap.Stringer("backend", b), zap.Int("attempt", i+1), zap.Error(err))
			time.Sleep(interval)
			continue
		}
		logger.Info("DB connected", zap.Stringer("backend", b))
		return db, nil
	}

	return nil, ErrRetryExceeded
}

// startRestServer запускает сервер REST API.
func startRestServer(addr string, db domain.Repository, logger *zap.Logger, wg *sync.WaitGroup) *http.Server {
	// REST API
	api := api.New(db, logger)
	if origin, ok := os.LookupEnv(originEnv); ok {
		api.AllowedOrigin = origin
	}

	// конфигурируем сервер
	srv := &http.Server{
		Addr:              addr,
		Handler:           api,
		IdleTimeout:       3 * time.Minute,
		ReadHeaderTimeout: time.Minute,
	}

	go func() {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error(err.Error())
		}
		logger.Warn("server is shut down")
		wg.Done()
	}()
	logger.Info("REST server started", zap.String("address", srv.Addr))
	return srv
}

var encoderCfg = zapcore.EncoderConfig{
	MessageKey: "msg",
	NameKey:    "name",

	LevelKey:    "level",
	EncodeLevel: zapcore.CapitalLevelEncoder,

	CallerKey:    "caller",
	EncodeCaller: zapcore.ShortCallerEncoder,

	TimeKey:    "time",
	EncodeTime: zapcore.RFC3339TimeEncoder,
}

func zapLogger(w io.Writer) *zap.Logger {
	zl := zap.New(
		zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderCfg),
			zapcore.Lock(zapcore.AddSync(w)),
			zapcore.DebugLevel,
		),
		zap.AddCaller(),
	)
	return zl
}
