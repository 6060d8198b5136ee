package seed

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/anuntech/metas/internal/domain/level"
	"github.com/anuntech/metas/internal/domain/model"
)

// Constants for ladder generation.
const (
	revenueBaseMin      = 50_000
	revenueBaseSpread   = 100_000
	revenueStep         = 1.15
	revenueRounding     = 1_000
	headcountBaseMin    = 5
	headcountBaseSpread = 16
	expenseBaseMin      = 60.0
	expenseBaseSpread   = 15.0
	expenseStep         = 2.0
	delinqBaseMin       = 8.0
	delinqBaseSpread    = 4.0
	delinqStep          = 0.5
	contractsBaseMin    = 20
	contractsBaseSpread = 61
	contractsStep       = 1.1
)

// Constants for record generation.
const (
	recordExpenseMin    = 55.0
	recordExpenseSpread = 25.0
	recordDelinqMin     = 3.0
	recordDelinqSpread  = 12.0
	staleFraction       = 0.6
	latestDay           = 20
	staleDay            = 10
)

// Performance profiles, each a range of multipliers over the first tier's revenue.
const (
	caseUnderperformer = iota
	caseOnTrack
	caseOverachiever
	caseElite
	profileCount
)

type profile struct {
	min, spread float64
}

//nolint:gochecknoglobals // fixed profile table
var profiles = [profileCount]profile{
	caseUnderperformer: {min: 0.4, spread: 0.3},
	caseOnTrack:        {min: 0.8, spread: 0.3},
	caseOverachiever:   {min: 1.1, spread: 0.5},
	caseElite:          {min: 1.6, spread: 0.6},
}

type generator struct {
	src *rand.ChaCha8
	rnd *rand.Rand
	cfg Config
}

func newGenerator(cfg Config) *generator {
	var key [32]byte
	binary.LittleEndian.PutUint64(key[:8], cfg.Seed)
	src := rand.NewChaCha8(key)
	return &generator{src: src, rnd: rand.New(src), cfg: cfg}
}

// Generate builds a dataset for cfg. The same config always yields the same
// dataset, so loading it twice overwrites rather than duplicates.
//
// Every unit gets a monotonic ladder of cfg.Levels tiers and two records: a
// stale partial one and a full-month one that supersedes it. Total gets a
// ladder summing the unit targets and no record, so its progress is computed.
func Generate(cfg Config) (Dataset, error) {
	if err := cfg.Validate(); err != nil {
		return Dataset{}, err
	}
	g := newGenerator(cfg)

	var ds Dataset
	ladders := make([][]model.GoalTier, 0, cfg.Units)
	for i := range cfg.Units {
		unit := UnitName(i)
		ladder := g.ladder(unit)
		ladders = append(ladders, ladder)

		p := profiles[g.rnd.IntN(profileCount)]
		factor := p.min + g.rnd.Float64()*p.spread
		if factor >= 1 {
			ladder[0].IsComplete = true
		}
		ds.Tiers = append(ds.Tiers, ladder...)
		ds.Records = append(ds.Records, g.records(unit, ladder[0], factor)...)
	}
	ds.Tiers = append(ds.Tiers, g.totalLadder(ladders)...)
	return ds, nil
}

// UnitName returns the name of the i-th generated unit.
func UnitName(i int) string {
	return fmt.Sprintf("Unit %02d", i+1)
}

func (g *generator) id() uuid.UUID {
	id, err := uuid.NewRandomFromReader(g.src)
	if err != nil {
		// ChaCha8 reads never fail.
		panic(err)
	}
	return id
}

func (g *generator) ladder(unit string) []model.GoalTier {
	revenue := float64(revenueBaseMin + g.rnd.IntN(revenueBaseSpread))
	headcount := headcountBaseMin + g.rnd.IntN(headcountBaseSpread)
	expense := expenseBaseMin + g.rnd.Float64()*expenseBaseSpread
	delinq := delinqBaseMin + g.rnd.Float64()*delinqBaseSpread
	contracts := float64(contractsBaseMin + g.rnd.IntN(contractsBaseSpread))

	out := make([]model.GoalTier, 0, g.cfg.Levels)
	for i, lvl := range level.All[:g.cfg.Levels] {
		out = append(out, model.GoalTier{
			ID:               g.id(),
			Period:           g.cfg.Period,
			Unit:             unit,
			Level:            lvl,
			Revenue:          decimal.NewFromFloat(math.Round(revenue/revenueRounding) * revenueRounding),
			Headcount:        headcount + i/2,
			ExpenseRatio:     round2(expense - float64(i)*expenseStep),
			DelinquencyRatio: round2(delinq - float64(i)*delinqStep),
			ContractCount:    int(math.Round(contracts)),
		})
		revenue *= revenueStep
		contracts *= contractsStep
	}
	return out
}

func (g *generator) totalLadder(ladders [][]model.GoalTier) []model.GoalTier {
	out := make([]model.GoalTier, 0, g.cfg.Levels)
	n := float64(len(ladders))
	for i, lvl := range level.All[:g.cfg.Levels] {
		t := model.GoalTier{
			ID:     g.id(),
			Period: g.cfg.Period,
			Unit:   model.TotalUnit,
			Level:  lvl,
		}
		var expense, delinq float64
		for _, l := range ladders {
			t.Revenue = t.Revenue.Add(l[i].Revenue)
			t.Headcount += l[i].Headcount
			t.ContractCount += l[i].ContractCount
			expense += l[i].ExpenseRatio
			delinq += l[i].DelinquencyRatio
		}
		t.ExpenseRatio = round2(expense / n)
		t.DelinquencyRatio = round2(delinq / n)
		out = append(out, t)
	}
	return out
}

func (g *generator) records(unit string, first model.GoalTier, factor float64) []model.PerformanceRecord {
	month := g.cfg.Period.Range()
	latest := g.record(unit, first, factor, month, month.Start.AddDate(0, 0, latestDay))

	staleWindow := model.DateRange{Start: month.Start, End: month.Start.AddDate(0, 0, staleDay-1)}
	stale := g.record(unit, first, factor*staleFraction, staleWindow, month.Start.AddDate(0, 0, staleDay))

	return []model.PerformanceRecord{stale, latest}
}

func (g *generator) record(unit string, first model.GoalTier, factor float64, window model.DateRange, updated time.Time) model.PerformanceRecord {
	revenue := first.Revenue.Mul(decimal.NewFromFloat(factor)).Round(2)
	delinq := round2(recordDelinqMin + g.rnd.Float64()*recordDelinqSpread)
	expenseRatio := recordExpenseMin + g.rnd.Float64()*recordExpenseSpread

	receipts := revenue.Mul(decimal.NewFromFloat(1 - delinq/100)).Round(2)
	return model.PerformanceRecord{
		ID:                 g.id(),
		Period:             g.cfg.Period,
		Unit:               unit,
		Window:             window,
		Revenue:            revenue,
		Receipts:           receipts,
		Expense:            revenue.Mul(decimal.NewFromFloat(expenseRatio / 100)).Round(2),
		DelinquencyPercent: delinq,
		DelinquencyValue:   revenue.Sub(receipts),
		ContractCount:      int(math.Round(float64(first.ContractCount) * factor)),
		UpdatedAt:          updated.UTC(),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
