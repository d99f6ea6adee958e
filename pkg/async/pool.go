package async

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	"CampusGram/config"
	"CampusGram/pkg/logger"

	"github.com/panjf2000/ants/v2"
)

var (
	global         *ants.Pool
	globalMu       sync.Mutex
	releaseTimeout time.Duration
)

// ContextPropagator 由业务层注入，用于从父 ctx 提取需要透传的字段
// （trace_id 等），让异步任务的日志仍然可以按请求聚合。
var ContextPropagator func(parent context.Context) context.Context

// SetContextPropagator 设置上下文传递器（在 main 初始化时调用）。
func SetContextPropagator(fn func(context.Context) context.Context) {
	ContextPropagator = fn
}

var errNotInitialized = errors.New("async pool not initialized")

// Init 初始化全局协程池（仅需在进程启动时调用一次）。
// 旁路任务（缓存重建、未读计数、积分投递）统一走该池，避免无界起协程。
func Init(cfg config.AsyncConfig) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if global != nil {
		return nil
	}

	opts := []ants.Option{
		ants.WithMaxBlockingTasks(cfg.MaxBlockingTasks),
		ants.WithExpiryDuration(cfg.ExpiryDuration),
		ants.WithPanicHandler(func(p any) {
			logPanic(context.Background(), p)
		}),
	}
	if cfg.Nonblocking {
		opts = append(opts, ants.WithNonblocking(true))
	}

	p, err := ants.NewPool(cfg.PoolSize, opts...)
	if err != nil {
		return err
	}

	global = p
	releaseTimeout = cfg.ReleaseTimeout
	return nil
}

// Release 优雅释放协程池资源（等待在途任务完成）。
func Release() error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if global == nil {
		return nil
	}

	var err error
	if releaseTimeout > 0 {
		err = global.ReleaseTimeout(releaseTimeout)
	} else {
		global.Release()
	}
	global = nil
	return err
}

// RunSafe 将任务投递到协程池异步执行。
// - 透传 trace 元数据，但脱离父 ctx 的取消与超时；
// - 任务自身带超时上限（timeout <= 0 时默认 1 分钟）；
// - panic 只打日志，不影响投递方。
func RunSafe(ctx context.Context, task func(ctx context.Context), timeout time.Duration) {
	if task == nil {
		return
	}
	if timeout <= 0 {
		timeout = time.Minute
	}

	baseCtx := context.Background()
	if ContextPropagator != nil && ctx != nil {
		baseCtx = ContextPropagator(ctx)
	}
	runCtx, cancel := context.WithTimeout(baseCtx, timeout)

	wrap := func() {
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				logPanic(runCtx, r)
			}
		}()

		task(runCtx)

		if runCtx.Err() == context.DeadlineExceeded && logger.L() != nil {
			logger.Warn(runCtx, "异步任务超时",
				logger.Duration("timeout", timeout),
			)
		}
	}

	if err := submit(wrap); err != nil {
		cancel()
		if logger.L() != nil {
			logger.Error(baseCtx, "异步任务投递失败",
				logger.ErrorField("error", err),
			)
		}
	}
}

func submit(task func()) error {
	if global == nil {
		return errNotInitialized
	}
	return global.Submit(task)
}

func logPanic(ctx context.Context, p any) {
	if logger.L() == nil {
		return
	}
	logger.Error(ctx, "异步任务 panic",
		logger.Any("panic", p),
		logger.String("stack", string(debug.Stack())),
	)
}
