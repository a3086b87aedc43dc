package service

import (
	"sync"
	"testing"

	"github.com/xstakup-in-house/digi-drop-backend-api/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskStateMachine(t *testing.T) {
	env := newTestEnv(t)
	u := env.newUser(t, walletA, nil)
	env.givePass(t, u.ID, 3)
	task := env.createTask(t, "Follow on X", 10)

	_, err := env.tasks.Complete(env.ctx, u.ID, task.ID)
	require.ErrorIs(t, err, domain.ErrNotStarted)
	assert.ErrorIs(t, err, domain.ErrTaskStateConflict)

	c, err := env.tasks.Start(env.ctx, u.ID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusStarted, c.Status)
	startedAt := c.StartedAt

	c, err = env.tasks.Start(env.ctx, u.ID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, startedAt, c.StartedAt)

	c, err = env.tasks.Complete(env.ctx, u.ID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, c.Status)
	assert.Equal(t, int64(30), c.AwardedPoints)
	assert.Equal(t, int64(30), env.profile(t, u.ID).ScoredPoints)

	stored, err := env.store.LockTaskCompletion(env.ctx, u.ID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(30), stored.AwardedPoints)

	_, err = env.tasks.Complete(env.ctx, u.ID, task.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyCompleted)
	_, err = env.tasks.Start(env.ctx, u.ID, task.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyCompleted)
	assert.Equal(t, int64(30), env.profile(t, u.ID).ScoredPoints)
}

func TestConcurrentStartCreatesOneRecord(t *testing.T) {
	env := newTestEnv(t)
	u := env.newUser(t, walletA, nil)
	env.givePass(t, u.ID, 1)
	task := env.createTask(t, "Join Telegram", 5)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.tasks.Start(env.ctx, u.ID, task.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	logs, err := env.store.ListAudit(env.ctx, u.ID, 100)
	require.NoError(t, err)
	started := 0
	for _, l := range logs {
		if l.Action == domain.AuditActionTaskStarted {
			started++
		}
	}
	assert.Equal(t, 1, started)
}

func TestConcurrentCompleteAwardsOnce(t *testing.T) {
	env := newTestEnv(t)
	u := env.newUser(t, walletA, nil)
	env.givePass(t, u.ID, 2)
	task := env.createTask(t, "Retweet", 4)
	_, err := env.tasks.Start(env.ctx, u.ID, task.ID)
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.tasks.Complete(env.ctx, u.ID, task.ID)
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, domain.ErrAlreadyCompleted)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, int64(20), env.profile(t, u.ID).ScoredPoints)
}

func TestCompleteTaskNeedsPass(t *testing.T) {
	env := newTestEnv(t)
	u := env.newUser(t, walletA, nil)
	task := env.createTask(t, "Retweet", 4)
	_, err := env.tasks.Start(env.ctx, u.ID, task.ID)
	require.NoError(t, err)

	_, err = env.tasks.Complete(env.ctx, u.ID, task.ID)
	require.ErrorIs(t, err, domain.ErrPassRequired)

	c, err := env.store.LockTaskCompletion(env.ctx, u.ID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusStarted, c.Status)
}

func TestUnknownOrInactiveTask(t *testing.T) {
	env := newTestEnv(t)
	u := env.newUser(t, walletA, nil)
	task := &domain.Task{Title: "Retired", Points: 1, TaskType: domain.TaskTypeOffSite}
	require.NoError(t, env.store.CreateTask(env.ctx, task))

	_, err := env.tasks.Start(env.ctx, u.ID, task.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = env.tasks.Start(env.ctx, u.ID, 777)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestListAvailableHidesCompleted(t *testing.T) {
	env := newTestEnv(t)
	u := env.newUser(t, walletA, nil)
	env.givePass(t, u.ID, 1)
	a := env.createTask(t, "A", 1)
	b := env.createTask(t, "B", 1)

	tasks, err := env.tasks.ListAvailable(env.ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, domain.TaskStatusPending, tasks[0].Status)

	_, err = env.tasks.Start(env.ctx, u.ID, a.ID)
	require.NoError(t, err)
	_, err = env.tasks.Start(env.ctx, u.ID, b.ID)
	require.NoError(t, err)
	_, err = env.tasks.Complete(env.ctx, u.ID, b.ID)
	require.NoError(t, err)

	tasks, err = env.tasks.ListAvailable(env.ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, a.ID, tasks[0].ID)
	assert.Equal(t, domain.TaskStatusStarted, tasks[0].Status)
}

func TestProfileTaskCompletesOnProfileUpdate(t *testing.T) {
	env := newTestEnv(t)
	u := env.newUser(t, walletA, nil)
	env.givePass(t, u.ID, 2)
	task := &domain.Task{Title: domain.ProfileTaskTitle, Points: 20, TaskType: domain.TaskTypeOnSite, IsActive: true}
	require.NoError(t, env.store.CreateTask(env.ctx, task))

	_, err := env.tasks.Start(env.ctx, u.ID, task.ID)
	require.NoError(t, err)
	_, err = env.tasks.Complete(env.ctx, u.ID, task.ID)
	require.ErrorIs(t, err, domain.ErrProfileIncomplete)

	first, last := "Ada", "Lovelace"
	p, err := env.profiles.Update(env.ctx, u.ID, domain.ProfileUpdate{FirstName: &first, LastName: &last})
	require.NoError(t, err)
	assert.Zero(t, p.ScoredPoints)

	email := " ada@example.com "
	p, err = env.profiles.Update(env.ctx, u.ID, domain.ProfileUpdate{Email: &email})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", p.Email)
	assert.Equal(t, int64(100), p.ScoredPoints)

	c, err := env.store.LockTaskCompletion(env.ctx, u.ID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, c.Status)
	assert.Equal(t, int64(100), c.AwardedPoints)

	// further edits do not pay again
	first = "Augusta"
	p, err = env.profiles.Update(env.ctx, u.ID, domain.ProfileUpdate{FirstName: &first})
	require.NoError(t, err)
	assert.Equal(t, int64(100), p.ScoredPoints)
}
