package service

import (
	"context"
	"strings"
	"testing"

	"github.com/clicsoporte/Tools-despachos-sub002/internal/warehouse/entity"
	"github.com/clicsoporte/Tools-despachos-sub002/internal/warehouse/repository"
	"github.com/clicsoporte/Tools-despachos-sub002/internal/warehouse/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newLocationService(t *testing.T) (*LocationService, *repository.Repositories) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	svc := NewLocationService(repos, Options{PathSeparator: " / "}, zap.NewNop())
	return svc, repos
}

func TestRackTemplateNodeCount(t *testing.T) {
	svc, _ := newLocationService(t)
	ctx := context.Background()

	cases := []struct {
		levels, positions, depth int
		want                     int
	}{
		{1, 1, 0, 3},   // 1 + 1 + 1
		{3, 4, 0, 16},  // 1 + 3 + 12
		{3, 4, 2, 40},  // 1 + 3 + 12 + 24
		{2, 10, 1, 43}, // 1 + 2 + 20 + 20
	}

	for i, tc := range cases {
		prefix := "RK-" + string(rune('1'+i))
		nodes, err := svc.CreateRackFromTemplate(ctx, &RackTemplateRequest{
			Name:      "Rack " + prefix,
			Prefix:    prefix,
			Levels:    tc.levels,
			Positions: tc.positions,
			Depth:     tc.depth,
		})
		require.NoError(t, err, "levels=%d positions=%d depth=%d", tc.levels, tc.positions, tc.depth)
		assert.Len(t, nodes, tc.want, "levels=%d positions=%d depth=%d", tc.levels, tc.positions, tc.depth)
	}
}

func TestRackTemplateCodesAndTypes(t *testing.T) {
	svc, _ := newLocationService(t)
	ctx := context.Background()

	nodes, err := svc.CreateRackFromTemplate(ctx, &RackTemplateRequest{
		Name:      "Rack Principal",
		Prefix:    "rp-01",
		Levels:    2,
		Positions: 2,
		Depth:     2,
	})
	require.NoError(t, err)

	byCode := make(map[string]entity.Location, len(nodes))
	for _, n := range nodes {
		byCode[n.Code] = n
	}

	root, ok := byCode["RP-01"]
	require.True(t, ok, "root code should be the uppercased prefix")
	assert.Equal(t, entity.LocationTypeRack, root.Type)

	level, ok := byCode["RP-01-B"]
	require.True(t, ok, "second level should be letter B")
	assert.Equal(t, entity.LocationTypeShelf, level.Type)
	require.NotNil(t, level.ParentID)
	assert.Equal(t, root.ID, *level.ParentID)

	position, ok := byCode["RP-01-B-2"]
	require.True(t, ok)
	assert.Equal(t, entity.LocationTypeBin, position.Type)

	for _, suffix := range []string{"F", "T"} {
		slot, ok := byCode["RP-01-B-2-"+suffix]
		require.True(t, ok, "depth slot %s missing", suffix)
		assert.Equal(t, entity.LocationTypeBin, slot.Type)
		require.NotNil(t, slot.ParentID)
		assert.Equal(t, position.ID, *slot.ParentID)
	}
}

func TestRackTemplateValidation(t *testing.T) {
	svc, _ := newLocationService(t)
	ctx := context.Background()

	bad := []RackTemplateRequest{
		{Name: "x", Prefix: "X", Levels: 0, Positions: 1},
		{Name: "x", Prefix: "X", Levels: 27, Positions: 1},
		{Name: "x", Prefix: "X", Levels: 1, Positions: 0},
		{Name: "x", Prefix: "X", Levels: 1, Positions: 1, Depth: 3},
		{Name: "x", Prefix: "X", Levels: 1, Positions: 1, Depth: -1},
	}
	for i := range bad {
		_, err := svc.CreateRackFromTemplate(ctx, &bad[i])
		assert.ErrorIs(t, err, ErrInvalidRackTemplate, "case %d", i)
	}
}

func TestCloneRackIsomorphic(t *testing.T) {
	svc, repos := newLocationService(t)
	ctx := context.Background()

	source, err := svc.CreateRackFromTemplate(ctx, &RackTemplateRequest{
		Name:      "Rack Origen",
		Prefix:    "RO-01",
		Levels:    2,
		Positions: 3,
		Depth:     1,
	})
	require.NoError(t, err)

	clones, err := svc.CloneRack(ctx, &CloneRackRequest{
		SourceRackID: source[0].ID,
		Name:         "Rack Copia",
		Prefix:       "RC-01",
	})
	require.NoError(t, err)
	require.Len(t, clones, len(source))

	sourceIDs := make(map[string]bool, len(source))
	for _, n := range source {
		sourceIDs[n.ID] = true
	}

	sourceCodes := make(map[string]bool, len(source))
	for _, n := range source {
		sourceCodes[strings.Replace(n.Code, "RO-01", "RC-01", 1)] = true
	}

	for _, clone := range clones {
		assert.False(t, sourceIDs[clone.ID], "clone reused a source id")
		assert.True(t, sourceCodes[clone.Code], "unexpected clone code %s", clone.Code)
		assert.True(t, strings.HasPrefix(clone.Code, "RC-01"), "code %s kept old prefix", clone.Code)
	}
	assert.Equal(t, "Rack Copia", clones[0].Name)

	// the source is untouched
	subtree, err := repos.Location.Subtree(ctx, source[0].ID)
	require.NoError(t, err)
	assert.Len(t, subtree, len(source))
}

func TestCloneRackRejectsNonRack(t *testing.T) {
	svc, _ := newLocationService(t)
	ctx := context.Background()

	bin, err := svc.Create(ctx, &CreateLocationRequest{Name: "Suelto", Code: "SUELTO-1", Type: "bin"})
	require.NoError(t, err)

	_, err = svc.CloneRack(ctx, &CloneRackRequest{SourceRackID: bin.ID, Name: "x", Prefix: "X"})
	assert.ErrorIs(t, err, ErrInvalidRackTemplate)
}

func TestCreateNormalizesCode(t *testing.T) {
	svc, _ := newLocationService(t)
	ctx := context.Background()

	loc, err := svc.Create(ctx, &CreateLocationRequest{Name: "Bodega", Code: " bod-01 ", Type: "building"})
	require.NoError(t, err)
	assert.Equal(t, "BOD-01", loc.Code)

	_, err = svc.Create(ctx, &CreateLocationRequest{Name: "x", Code: "X-1", Type: "gaveta"})
	assert.ErrorIs(t, err, ErrInvalidLocationType)

	missing := "no-such-parent"
	_, err = svc.Create(ctx, &CreateLocationRequest{Name: "x", Code: "X-2", Type: "bin", ParentID: &missing})
	assert.ErrorIs(t, err, ErrParentNotFound)
}
