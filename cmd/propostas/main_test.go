package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/constructa/propostas/internal/app"
	"github.com/constructa/propostas/internal/freight"
	"github.com/constructa/propostas/internal/users"
	"github.com/constructa/propostas/jobs"
)

func TestVersionCommand(t *testing.T) {
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "propostas version "+app.Version)
}

func TestRootRegistersCommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd().Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "migrate", "seed-freight", "create-user", "jobs", "version"} {
		assert.True(t, names[want], want)
	}
}

type stubImporter struct {
	got freight.Seed
	err error
}

func (s *stubImporter) ImportRates(ctx context.Context, seed freight.Seed) (freight.ImportSummary, error) {
	s.got = seed
	if s.err != nil {
		return freight.ImportSummary{}, s.err
	}
	return freight.ImportSummary{Vehicles: len(seed.Vehicles), RatesCreated: len(seed.Rates)}, nil
}

const seedYAML = `vehicles:
  - name: Truck
    capacity_kg: 14000
    pallet_capacity: 12
rates:
  - city: Campinas
    state: SP
    vehicle: Truck
    modality: CIF
    price_per_trip: 850
  - city: Jundiaí
    state: SP
    vehicle: Truck
    modality: FOB
    price_per_trip: 0
`

func TestImportFreight(t *testing.T) {
	imp := &stubImporter{}
	var out bytes.Buffer
	require.NoError(t, importFreight(context.Background(), strings.NewReader(seedYAML), imp, &out))
	assert.Len(t, imp.got.Rates, 2)
	assert.Equal(t, "vehicles: 1, rates created: 2, rates updated: 0\n", out.String())
}

func TestImportFreightRejectsBadSeed(t *testing.T) {
	imp := &stubImporter{}
	err := importFreight(context.Background(), strings.NewReader("rates:\n  - city: X\n    state: SAO\n"), imp, &bytes.Buffer{})
	require.Error(t, err)
	assert.ErrorIs(t, err, freight.ErrInvalidInput)
	assert.Empty(t, imp.got.Rates)
}

func TestImportFreightPropagatesErrors(t *testing.T) {
	imp := &stubImporter{err: errors.New("tx aborted")}
	err := importFreight(context.Background(), strings.NewReader(seedYAML), imp, &bytes.Buffer{})
	assert.EqualError(t, err, "tx aborted")
}

type stubCreator struct {
	got users.CreateUserRequest
}

func (s *stubCreator) Create(ctx context.Context, actorID int64, req users.CreateUserRequest) (*users.User, error) {
	s.got = req
	return &users.User{ID: 7, Email: req.Email, Role: req.Role}, nil
}

func TestCreateUserNormalisesCode(t *testing.T) {
	svc := &stubCreator{}
	var out bytes.Buffer
	err := createUser(context.Background(), svc, users.CreateUserRequest{
		Email: "ana@constructa.com.br", FullName: "Ana", Password: "segredo123", Role: "vendor", SalespersonCode: " ana ",
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, "ANA", svc.got.SalespersonCode)
	assert.Equal(t, "created user 7 (ana@constructa.com.br, vendor)\n", out.String())
}

func TestReadPassword(t *testing.T) {
	pw, err := readPassword(strings.NewReader("s3cret-pass\n"), true)
	require.NoError(t, err)
	assert.Equal(t, "s3cret-pass", pw)

	_, err = readPassword(strings.NewReader("\n"), true)
	assert.Error(t, err)

	t.Setenv(passwordEnv, "")
	_, err = readPassword(nil, false)
	assert.ErrorContains(t, err, passwordEnv)

	t.Setenv(passwordEnv, "from-env-123")
	pw, err = readPassword(nil, false)
	require.NoError(t, err)
	assert.Equal(t, "from-env-123", pw)
}

type stubEnqueuer struct {
	tasks []*asynq.Task
}

func (s *stubEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	s.tasks = append(s.tasks, task)
	return &asynq.TaskInfo{ID: "t1", Type: task.Type(), Queue: jobs.QueueDefault}, nil
}

type stubQueues map[string]*asynq.QueueInfo

func (s stubQueues) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	if info, ok := s[queue]; ok {
		return info, nil
	}
	return nil, asynq.ErrQueueNotFound
}

func TestJobsTrigger(t *testing.T) {
	enq := &stubEnqueuer{}
	c := &jobsCLI{client: enq}

	info, err := c.trigger(context.Background(), jobs.TaskExpireProposals, 0)
	require.NoError(t, err)
	assert.Equal(t, jobs.TaskExpireProposals, info.Type)

	_, err = c.trigger(context.Background(), jobs.TaskIdempotencySweep, 24)
	require.NoError(t, err)
	require.Len(t, enq.tasks, 2)
	assert.JSONEq(t, `{"retention_hours":24}`, string(enq.tasks[1].Payload()))

	_, err = c.trigger(context.Background(), "mail:proposal", 0)
	assert.ErrorContains(t, err, "unsupported job")
}

func TestJobsStats(t *testing.T) {
	c := &jobsCLI{inspector: stubQueues{
		jobs.QueueMail: {Queue: jobs.QueueMail, Pending: 3, Retry: 1},
	}}
	var out bytes.Buffer
	require.NoError(t, c.printStats(&out))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"mail", "3", "0", "0", "1", "0"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"default", "0", "0", "0", "0", "0"}, strings.Fields(lines[2]))
}
