package pool

// TaskFunc 一个可提交的工作单元
type TaskFunc func() (interface{}, error)

// Task 已提交任务的句柄（future 语义）
type Task struct {
	done  chan struct{}
	value interface{}
	err   error
}

func newTask() *Task {
	return &Task{done: make(chan struct{})}
}

// Wait blocks until the task completes and returns its result.
func (t *Task) Wait() (interface{}, error) {
	<-t.done
	return t.value, t.err
}

// Done returns a channel closed when the task completes.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// complete 写入结果并唤醒等待者，只允许调用一次
func (t *Task) complete(value interface{}, err error) {
	t.value = value
	t.err = err
	close(t.done)
}
