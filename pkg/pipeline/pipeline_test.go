package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/kass/go-bbox-reconcile/pkg/models"
	"github.com/kass/go-bbox-reconcile/pkg/reconcile"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	pageSpace = models.PageUnits{PageWidth: 720, PageHeight: 405}
	image     = models.PixelSpace{Width: 960, Height: 540}
)

func layoutPage(idx int, elements ...*models.Element) *models.Page {
	return &models.Page{Index: idx, Space: pageSpace, Source: models.SourceLayout, Elements: elements}
}

func box(x0, y0, x1, y1 float64) models.BoundingBox {
	return models.BoundingBox{X0: x0, Y0: y0, X1: x1, Y1: y1}
}

func assertBoxInDelta(t *testing.T, expected, actual models.BoundingBox) {
	t.Helper()
	assert.InDeltaSlice(t, expected.Slice(), actual.Slice(), 1e-9)
}

func TestReconcilePage(t *testing.T) {
	p := New(reconcile.NewReconciler())
	title := &models.Element{ID: "title", Type: models.TypeTitle, BBox: box(12, 8, 707, 138)}

	res, err := p.ReconcilePage(Job{Page: layoutPage(0, title), Destination: image})
	require.NoError(t, err)

	require.Len(t, res.Elements, 1)
	out := res.Elements[0]
	assert.InDelta(t, 16, out.BBox.X0, 1e-9)
	assert.InDelta(t, 184, out.BBox.Y1, 1e-9)
	assert.Empty(t, res.Warnings)

	// Input untouched
	assert.Equal(t, box(12, 8, 707, 138), title.BBox)
}

func TestReconcilePageAssignsIDs(t *testing.T) {
	p := New(nil)
	el := &models.Element{Type: models.TypeText, BBox: box(0, 0, 10, 10)}

	res, err := p.ReconcilePage(Job{Page: layoutPage(0, el), Destination: image})
	require.NoError(t, err)
	assert.Len(t, res.Elements[0].ID, 36)
	assert.Empty(t, el.ID)
}

func TestReconcilePageWarnings(t *testing.T) {
	p := New(reconcile.NewReconciler())

	res, err := p.ReconcilePage(Job{
		Page: layoutPage(0,
			&models.Element{ID: "wide", Type: models.TypeText, BBox: box(12, 8, 729, 138)},
			&models.Element{ID: "inverted", Type: models.TypeText, BBox: box(500, 8, 100, 138)},
		),
		Destination: image,
	})
	require.NoError(t, err)

	require.Len(t, res.Warnings, 2)
	assert.Equal(t, Warning{ElementID: "wide", Kind: WarnClamped, Input: box(12, 8, 729, 138), Output: res.Elements[0].BBox}, res.Warnings[0])
	assert.Equal(t, "inverted", res.Warnings[1].ElementID)
	assert.Equal(t, WarnDegenerate, res.Warnings[1].Kind)
	assert.True(t, res.Elements[0].Flags.Clamped)
	assert.True(t, res.Elements[1].Flags.Degenerate)
}

func TestReconcilePageConvertsChildrenAndGlobalBoxes(t *testing.T) {
	global := box(360, 202.5, 720, 405)
	table := &models.Element{
		ID:   "table",
		Type: models.TypeTable,
		BBox: box(360, 202.5, 720, 405),
		Children: []*models.Element{
			{ID: "cell", Type: models.TypeTableCell, BBox: box(0, 0, 180, 101.25), BBoxGlobal: &global},
		},
	}

	res, err := New(nil).ReconcilePage(Job{Page: layoutPage(0, table), Destination: image})
	require.NoError(t, err)

	cell := res.Elements[0].Children[0]
	assertBoxInDelta(t, box(0, 0, 240, 135), cell.BBox)
	require.NotNil(t, cell.BBoxGlobal)
	assertBoxInDelta(t, box(480, 270, 960, 540), *cell.BBoxGlobal)
	assert.NotSame(t, table.Children[0], cell)
}

func TestReconcilePageNestsTableCells(t *testing.T) {
	p := New(reconcile.NewReconciler(), WithTableCellCoverage(0.9))
	normalized := &models.Page{
		Index:  0,
		Space:  models.Normalized{},
		Source: models.SourceNormalized,
		Elements: []*models.Element{
			{ID: "heading", Type: models.TypeTitle, BBox: box(0.1, 0.05, 0.9, 0.15)},
			{ID: "table", Type: models.TypeTable, BBox: box(0.1, 0.2, 0.9, 0.8)},
			{ID: "cell-1", Type: models.TypeText, Content: "Q1", BBox: box(0.15, 0.25, 0.3, 0.3)},
			{ID: "cell-2", Type: models.TypeText, Content: "Q2", BBox: box(0.35, 0.25, 0.5, 0.3)},
			{ID: "caption", Type: models.TypeText, BBox: box(0.1, 0.82, 0.9, 0.9)},
		},
	}

	res, err := p.ReconcilePage(Job{Page: normalized, Destination: models.PixelSpace{Width: 1000, Height: 1000}})
	require.NoError(t, err)

	require.Len(t, res.Elements, 3)
	assert.Equal(t, "heading", res.Elements[0].ID)
	assert.Equal(t, "caption", res.Elements[2].ID)

	table := res.Elements[1]
	require.Len(t, table.Children, 2)

	cell := table.Children[0]
	assert.Equal(t, "cell-1", cell.ID)
	assert.Equal(t, models.TypeTableCell, cell.Type)
	assert.True(t, cell.Flags.InTable)
	require.NotNil(t, cell.BBoxGlobal)
	assert.InDelta(t, 150, cell.BBoxGlobal.X0, 1e-9)
	assert.InDelta(t, 50, cell.BBox.X0, 1e-9, "local to the table origin")
	assert.InDelta(t, 50, cell.BBox.Y0, 1e-9)
}

func TestReconcilePageRejectsUntrustedWithoutOptIn(t *testing.T) {
	page := &models.Page{
		Index:    0,
		Space:    models.Untrusted{AssumedWidth: 1000, AssumedHeight: 1000},
		Source:   models.SourceContentList,
		Elements: []*models.Element{{ID: "t", BBox: box(16, 19, 981, 340)}},
	}

	_, err := New(reconcile.NewReconciler()).ReconcilePage(Job{Page: page, Destination: image})
	assert.ErrorIs(t, err, reconcile.ErrUntrustedSource)

	res, err := New(reconcile.NewReconciler(reconcile.WithUntrustedSources(true))).
		ReconcilePage(Job{Page: page, Destination: image})
	require.NoError(t, err)
	assert.Len(t, res.Elements, 1)

	_, err = New(nil).ReconcilePage(Job{})
	assert.Error(t, err)
}

func TestRunOrdersPages(t *testing.T) {
	jobs := make([]Job, 20)
	for i := range jobs {
		// Submit in reverse page order
		idx := len(jobs) - 1 - i
		jobs[i] = Job{
			Page: layoutPage(idx, &models.Element{
				ID:   fmt.Sprintf("p%d", idx),
				Type: models.TypeText,
				BBox: box(0, 0, 72, 36),
			}),
			Destination: image,
		}
	}

	results, err := New(nil, WithWorkers(3)).Run(context.Background(), jobs)
	require.NoError(t, err)
	require.Len(t, results, len(jobs))

	for i, res := range results {
		assert.Equal(t, i, res.Index)
		assert.Equal(t, fmt.Sprintf("p%d", i), res.Elements[0].ID)
	}
}

func TestRunStopsOnError(t *testing.T) {
	jobs := []Job{
		{Page: layoutPage(0, &models.Element{BBox: box(0, 0, 1, 1)}), Destination: image},
		{Page: &models.Page{Index: 1, Space: models.PageUnits{}, Elements: []*models.Element{{BBox: box(0, 0, 1, 1)}}}, Destination: image},
	}

	_, err := New(nil, WithWorkers(1)).Run(context.Background(), jobs)
	assert.ErrorIs(t, err, reconcile.ErrInvalidDimensions)
}

func TestRunHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(nil).Run(ctx, []Job{{Page: layoutPage(0), Destination: image}})
	assert.ErrorIs(t, err, context.Canceled)
}
