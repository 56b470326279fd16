package xpool_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/omeyang/xexec/pkg/util/xpool"
)

func Example() {
	pool, err := xpool.New(xpool.Config{
		CoreSize:      2,
		MaxSize:       4,
		KeepAlive:     30 * time.Second,
		QueueCapacity: 100,
		Rejection:     xpool.PolicyCallerRuns,
	}, xpool.WithName("example"))
	if err != nil {
		panic(err)
	}

	results := make(chan int, 3)
	for i := range 3 {
		if _, err := pool.SubmitFunc(func(context.Context) error {
			results <- i * i
			return nil
		}); err != nil {
			fmt.Println("submit:", err)
		}
	}

	pool.Shutdown(true)
	fmt.Println("terminated:", pool.AwaitTermination(5*time.Second))

	close(results)
	sum := 0
	for r := range results {
		sum += r
	}
	fmt.Println("sum:", sum)
	// Output:
	// terminated: true
	// sum: 5
}

func ExampleWithFailureObserver() {
	pool, err := xpool.NewSingle(xpool.WithFailureObserver(func(id xpool.TaskID, err error) {
		fmt.Printf("task %d failed: %v\n", id, err)
	}))
	if err != nil {
		panic(err)
	}
	defer pool.Close()

	_, _ = pool.SubmitFunc(func(context.Context) error { return errors.New("disk full") })
	_ = pool.Close()
	// Output:
	// task 1 failed: disk full
}

func ExampleCall() {
	pool, err := xpool.NewFixed(2)
	if err != nil {
		panic(err)
	}
	defer pool.Close()

	f, err := xpool.Call(pool, func(context.Context) (string, error) {
		return "hello", nil
	})
	if err != nil {
		panic(err)
	}
	v, err := f.Get(context.Background())
	fmt.Println(v, err)
	// Output:
	// hello <nil>
}

func ExampleScheduledPool_ScheduleAfter() {
	pool, err := xpool.NewScheduledFixed(1)
	if err != nil {
		panic(err)
	}
	defer pool.Close()

	st, err := pool.ScheduleAfter(xpool.TaskFunc(func(context.Context) error {
		fmt.Println("fired")
		return nil
	}), 10*time.Millisecond)
	if err != nil {
		panic(err)
	}
	<-st.Done()
	fmt.Println(st.State())
	// Output:
	// fired
	// completed
}

func ExamplePool_Shutdown() {
	pool, err := xpool.NewSingle()
	if err != nil {
		panic(err)
	}

	block := make(chan struct{})
	_, _ = pool.SubmitFunc(func(ctx context.Context) error {
		<-ctx.Done()
		close(block)
		return nil
	})
	for range 3 {
		_, _ = pool.SubmitFunc(func(context.Context) error { return nil })
	}

	// 等待第一个任务开始执行
	for pool.Stats().Queued != 3 || pool.Stats().Active != 1 {
		time.Sleep(time.Millisecond)
	}
	pending := pool.Shutdown(false)
	<-block
	fmt.Println("pending:", len(pending), "terminated:", pool.AwaitTermination(time.Second))
	// Output:
	// pending: 3 terminated: true
}
