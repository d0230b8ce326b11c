package async

import (
	"context"
	"sync"
)

// Task represents an asynchronous operation with a name and function.
type Task struct {
	Name string
	Func func(context.Context) error
}

// Collect runs tasks with at most limit in flight and waits for all of them.
// The returned map holds one entry per task name; nil means success.
// A limit below one runs every task at once.
func Collect(ctx context.Context, tasks []Task, limit int) map[string]error {
	results := make(map[string]error, len(tasks))
	if len(tasks) == 0 {
		return results
	}
	if limit < 1 || limit > len(tasks) {
		limit = len(tasks)
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, limit)
	)

	for _, task := range tasks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				mu.Lock()
				results[task.Name] = ctx.Err()
				mu.Unlock()
				return
			}
			err := task.Func(ctx)
			<-sem

			mu.Lock()
			results[task.Name] = err
			mu.Unlock()
		}()
	}

	wg.Wait()
	return results
}
