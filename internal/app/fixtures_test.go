package service_test

import (
	"context"
	"errors"
	"sync"
	"time"

	service "github.com/okian/tiergate/internal/app"
	"github.com/okian/tiergate/internal/domain/model"
	"github.com/okian/tiergate/internal/rules"
)

const (
	valeGuardian = 131329
	gorseval     = 131330
	accountName  = "Me.1234"
)

var errLogGone = errors.New("log not found")

// fakeSource serves records by URL. When gate is set, every fetch waits on
// it and reports on entered first.
type fakeSource struct {
	mu      sync.Mutex
	records map[string]*model.EncounterRecord
	gate    chan struct{}
	entered chan string
	once    sync.Once
}

func newFakeSource() *fakeSource {
	return &fakeSource{records: make(map[string]*model.EncounterRecord)}
}

func (f *fakeSource) put(url string, rec *model.EncounterRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[url] = rec
}

func (f *fakeSource) block() {
	f.gate = make(chan struct{})
	f.entered = make(chan string, 1)
}

func (f *fakeSource) release() {
	f.once.Do(func() { close(f.gate) })
}

func (f *fakeSource) Fetch(ctx context.Context, url string) (*model.EncounterRecord, error) {
	if f.gate != nil {
		select {
		case f.entered <- url:
		default:
		}
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[url]
	if !ok {
		return nil, errLogGone
	}
	return rec, nil
}

func testPack() *rules.Pack {
	return &rules.Pack{
		Bosses: []model.Boss{
			{Name: "Vale Guardian", EncounterID: valeGuardian, Pool: model.Pool1},
			{Name: "Gorseval the Multifarious", EncounterID: gorseval, Pool: model.Pool1},
			{Name: "Sabetha the Saboteur", EncounterID: 131331, Pool: model.Pool2},
			{Name: "Escort", EncounterID: 131841, Pool: model.PoolNotAllowed},
		},
		Mechanics: []model.MechanicRule{
			{EncounterID: valeGuardian, Name: "Boss TP", Scope: model.ScopePlayer, Max: 0},
		},
	}
}

func cleanRecord(encounterID int) *model.EncounterRecord {
	food := []model.Consumable{{ID: 91878}, {ID: 9443}}
	return &model.EncounterRecord{
		EncounterID: encounterID,
		Success:     true,
		GameBuild:   150000,
		Players: []model.Player{
			{Account: accountName, Name: "Shield Maiden", Defenses: []model.Defense{{}}, Consumables: food},
			{Account: "Other.1", Name: "Someone Else", Defenses: []model.Defense{{}}, Consumables: food},
		},
	}
}

func teleportedRecord() *model.EncounterRecord {
	rec := cleanRecord(valeGuardian)
	rec.Mechanics = []model.Mechanic{{Name: "Boss TP", MechanicsData: []model.MechanicEvent{{Actor: "Shield Maiden"}}}}
	return rec
}

func request(url string) model.SubmissionRequest {
	return model.SubmissionRequest{
		SubmitterID: "42",
		AccountName: accountName,
		Tier:        2,
		Role:        "dps",
		LogURL:      url,
	}
}

func newService(src *fakeSource, opts ...service.Option) *service.Service {
	base := []service.Option{
		service.WithLogSource(src),
		service.WithRules(testPack()),
		service.WithMinGameBuild(140000),
		service.WithWorkerCount(2),
		service.WithQueueSize(16),
	}
	return service.New(append(base, opts...)...)
}

// waitProcessed polls until the worker has stored an outcome.
func waitProcessed(ctx context.Context, svc *service.Service, id string) model.Submission {
	deadline := time.Now().Add(5 * time.Second)
	for {
		sub, err := svc.Get(ctx, id)
		if err == nil && (sub.Verdict != nil || sub.Status != model.StatusPending) {
			return sub
		}
		if time.Now().After(deadline) {
			return sub
		}
		time.Sleep(10 * time.Millisecond)
	}
}
