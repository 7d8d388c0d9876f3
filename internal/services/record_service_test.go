package services_test

import (
	"context"
	"testing"

	"github.com/goccy/go-json"
	"github.com/localnerve/jam-build-recordsdb/internal/fields"
	"github.com/localnerve/jam-build-recordsdb/internal/realtime"
	"github.com/localnerve/jam-build-recordsdb/internal/services"
	"github.com/localnerve/jam-build-recordsdb/internal/types"
	"github.com/localnerve/jam-build-recordsdb/tests/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postsEngine(t *testing.T) *helpers.Engine {
	t.Helper()
	e := helpers.NewTestEngine(t)
	helpers.CreateTestCollection(t, e, "posts",
		helpers.Field("title", fields.Text, fields.Validation{Required: true}),
		helpers.Field("slug", fields.Text, fields.Validation{Unique: true}),
		helpers.Field("views", fields.Number, fields.Validation{Min: helpers.Ptr(0.0)}),
		helpers.Field("live", fields.Bool, fields.Validation{}),
		helpers.Field("status", fields.Select, fields.Validation{Values: []string{"draft", "published"}}),
		helpers.Field("tags", fields.JSON, fields.Validation{}),
	)
	return e
}

func titles(page *services.RecordPage) []string {
	out := make([]string, 0, len(page.Items))
	for _, rec := range page.Items {
		v, _ := rec.Get("title")
		out = append(out, v.String())
	}
	return out
}

func TestRecordCRUD(t *testing.T) {
	e := postsEngine(t)
	ctx := context.Background()
	sub := e.Bus.Subscribe("posts")

	rec, err := e.Records.Create(ctx, "posts", map[string]interface{}{
		"title": "Hello",
		"views": 3,
		"tags":  []interface{}{"a", "b"},
	}, "")
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.Created.IsZero())
	assert.True(t, rec.Created.Equal(rec.Updated))

	views, ok := rec.Get("views")
	require.True(t, ok)
	assert.Equal(t, 3.0, views.Float())
	tags, _ := rec.Get("tags")
	assert.Equal(t, []interface{}{"a", "b"}, tags.Interface())

	ev := nextEvent(t, sub)
	assert.Equal(t, realtime.RecordCreated, ev.Type)
	assert.Equal(t, rec.ID, ev.RecordID)

	got, err := e.Records.Get(ctx, "posts", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)

	updated, err := e.Records.Update(ctx, "posts", rec.ID, map[string]interface{}{"live": true})
	require.NoError(t, err)
	live, _ := updated.Get("live")
	assert.True(t, live.Bool())
	title, _ := updated.Get("title")
	assert.Equal(t, "Hello", title.String())
	assert.False(t, updated.Updated.Before(rec.Updated))
	assert.Equal(t, realtime.RecordUpdated, nextEvent(t, sub).Type)

	require.NoError(t, e.Records.Delete(ctx, "posts", rec.ID))
	assert.Equal(t, realtime.RecordDeleted, nextEvent(t, sub).Type)

	_, err = e.Records.Get(ctx, "posts", rec.ID)
	assertKind(t, err, types.KindNotFound)
	assertKind(t, e.Records.Delete(ctx, "posts", rec.ID), types.KindNotFound)
}

func TestRecordValidation(t *testing.T) {
	e := postsEngine(t)
	ctx := context.Background()

	_, err := e.Records.Create(ctx, "posts", map[string]interface{}{
		"views":  -1,
		"status": "archived",
	}, "")
	assertKind(t, err, types.KindValidation)
	ce, _ := types.AsCustomError(err)
	require.NotNil(t, ce)
	assert.Contains(t, ce.Fields, "title")
	assert.Contains(t, ce.Fields, "views")
	assert.Contains(t, ce.Fields, "status")

	rec := helpers.CreateTestRecord(t, e, "posts", map[string]interface{}{"title": "ok"})

	_, err = e.Records.Update(ctx, "posts", rec.ID, map[string]interface{}{"title": nil})
	assertKind(t, err, types.KindValidation)

	_, err = e.Records.Update(ctx, "posts", rec.ID, map[string]interface{}{})
	assertKind(t, err, types.KindBadRequest)

	_, err = e.Records.Update(ctx, "posts", "missing", map[string]interface{}{"title": "x"})
	assertKind(t, err, types.KindNotFound)

	_, err = e.Records.Create(ctx, "nope", map[string]interface{}{"title": "x"}, "")
	assertKind(t, err, types.KindNotFound)
}

func TestRecordUniqueConflict(t *testing.T) {
	e := postsEngine(t)
	ctx := context.Background()

	helpers.CreateTestRecord(t, e, "posts", map[string]interface{}{"title": "a", "slug": "hello"})
	_, err := e.Records.Create(ctx, "posts", map[string]interface{}{"title": "b", "slug": "hello"}, "")
	assertKind(t, err, types.KindConflict)

	other := helpers.CreateTestRecord(t, e, "posts", map[string]interface{}{"title": "c", "slug": "other"})
	_, err = e.Records.Update(ctx, "posts", other.ID, map[string]interface{}{"slug": "hello"})
	assertKind(t, err, types.KindConflict)
}

func TestRecordOwnerStamping(t *testing.T) {
	e := helpers.NewTestEngine(t)
	ctx := context.Background()
	schema := []fields.Definition{
		helpers.Field("body", fields.Text, fields.Validation{}),
		helpers.Field("owner", fields.Text, fields.Validation{}),
	}
	_, err := e.Collections.Create(ctx, &services.CollectionInput{
		Name:    helpers.Ptr("notes"),
		Schema:  &schema,
		Options: &map[string]interface{}{services.OwnerFieldOption: "owner"},
	})
	require.NoError(t, err)

	stamped, err := e.Records.Create(ctx, "notes", map[string]interface{}{"body": "x"}, "user-1")
	require.NoError(t, err)
	owner, _ := stamped.Get("owner")
	assert.Equal(t, "user-1", owner.String())

	explicit, err := e.Records.Create(ctx, "notes", map[string]interface{}{"body": "y", "owner": "user-2"}, "user-1")
	require.NoError(t, err)
	owner, _ = explicit.Get("owner")
	assert.Equal(t, "user-2", owner.String())

	anonymous, err := e.Records.Create(ctx, "notes", map[string]interface{}{"body": "z"}, "")
	require.NoError(t, err)
	owner, _ = anonymous.Get("owner")
	assert.True(t, owner.Null)
}

func TestListRecordsPagination(t *testing.T) {
	e := postsEngine(t)
	ctx := context.Background()
	for _, title := range []string{"a", "b", "c", "d", "e"} {
		helpers.CreateTestRecord(t, e, "posts", map[string]interface{}{"title": title})
	}

	page, err := e.Records.List(ctx, "posts", services.ListQuery{Page: 1, PerPage: 2, Sort: "title"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, titles(page))
	assert.EqualValues(t, 5, page.Total)
	assert.Equal(t, 3, page.TotalPages)

	page, err = e.Records.List(ctx, "posts", services.ListQuery{Page: 3, PerPage: 2, Sort: "title"})
	require.NoError(t, err)
	assert.Equal(t, []string{"e"}, titles(page))

	page, err = e.Records.List(ctx, "posts", services.ListQuery{Page: 9, PerPage: 2})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.EqualValues(t, 5, page.Total)

	page, err = e.Records.List(ctx, "posts", services.ListQuery{Page: 1, PerPage: 10, Sort: "title", Order: "desc"})
	require.NoError(t, err)
	assert.Equal(t, []string{"e", "d", "c", "b", "a"}, titles(page))

	_, err = e.Records.List(ctx, "posts", services.ListQuery{Page: 0, PerPage: 10})
	assertKind(t, err, types.KindBadRequest)
	_, err = e.Records.List(ctx, "posts", services.ListQuery{Page: 1, PerPage: services.MaxPerPage + 1})
	assertKind(t, err, types.KindBadRequest)
}

func TestListRecordsSortErrors(t *testing.T) {
	e := postsEngine(t)
	ctx := context.Background()

	for _, q := range []services.ListQuery{
		{Page: 1, PerPage: 10, Sort: "nope"},
		{Page: 1, PerPage: 10, Sort: "title", Order: "sideways"},
		{Page: 1, PerPage: 10, Order: "asc"},
	} {
		_, err := e.Records.List(ctx, "posts", q)
		assertKind(t, err, types.KindBadRequest)
	}

	_, err := e.Records.List(ctx, "posts", services.ListQuery{Page: 1, PerPage: 10, Sort: "created", Order: "asc"})
	assert.NoError(t, err)
}

func TestListRecordsFilters(t *testing.T) {
	e := postsEngine(t)
	ctx := context.Background()
	seed := []map[string]interface{}{
		{"title": "Go tips", "views": 10, "live": true, "status": "published"},
		{"title": "Rust notes", "views": 50, "live": false, "status": "draft"},
		{"title": "Go generics", "views": 90, "live": true, "status": "draft"},
	}
	for _, payload := range seed {
		helpers.CreateTestRecord(t, e, "posts", payload)
	}

	list := func(filters ...services.Filter) []string {
		t.Helper()
		page, err := e.Records.List(ctx, "posts", services.ListQuery{
			Page: 1, PerPage: 10, Sort: "title", Filters: filters,
		})
		require.NoError(t, err)
		return titles(page)
	}

	assert.Equal(t, []string{"Go generics", "Go tips"},
		list(services.Filter{Field: "live", Value: true}))
	assert.Equal(t, []string{"Rust notes"},
		list(services.Filter{Field: "live", Op: services.OpNe, Value: true}))
	assert.Equal(t, []string{"Go generics", "Go tips"},
		list(services.Filter{Field: "title", Op: services.OpLike, Value: "Go"}))
	assert.Equal(t, []string{"Go tips"},
		list(services.Filter{Field: "title", Op: services.OpLike, Value: "tips"}))
	assert.Equal(t, []string{"Go generics", "Rust notes"},
		list(services.Filter{Field: "views", Op: services.OpGt, Value: 10}))
	assert.Equal(t, []string{"Go tips", "Rust notes"},
		list(services.Filter{Field: "views", Op: services.OpLte, Value: 50}))
	assert.Equal(t, []string{"Go generics"},
		list(
			services.Filter{Field: "status", Op: services.OpIn, Value: []interface{}{"draft"}},
			services.Filter{Field: "live", Value: true},
		))

	page, err := e.Records.List(ctx, "posts", services.ListQuery{
		Page: 1, PerPage: 1,
		Filters: []services.Filter{{Field: "status", Value: "draft"}},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)
	assert.Len(t, page.Items, 1)
}

func TestListRecordsLikeMatchesLiterally(t *testing.T) {
	e := postsEngine(t)
	ctx := context.Background()
	for _, title := range []string{"foo_bar", "fooXbar", "100% done", "[draft] intro"} {
		helpers.CreateTestRecord(t, e, "posts", map[string]interface{}{"title": title})
	}

	like := func(value string) []string {
		t.Helper()
		page, err := e.Records.List(ctx, "posts", services.ListQuery{
			Page: 1, PerPage: 10, Sort: "title",
			Filters: []services.Filter{{Field: "title", Op: services.OpLike, Value: value}},
		})
		require.NoError(t, err)
		return titles(page)
	}

	assert.Equal(t, []string{"foo_bar"}, like("foo_bar"))
	assert.Equal(t, []string{"foo_bar"}, like("o_b"))
	assert.Equal(t, []string{"fooXbar", "foo_bar"}, like("bar"))
	assert.Equal(t, []string{"100% done"}, like("%"))
	assert.Equal(t, []string{"[draft] intro"}, like("[draft]"))
	assert.Empty(t, like("foo!bar"))
}

func TestListRecordsFilterErrors(t *testing.T) {
	e := postsEngine(t)
	ctx := context.Background()

	for _, f := range []services.Filter{
		{Field: "nope", Value: "x"},
		{Field: "tags", Value: "x"},
		{Field: "views", Op: "between", Value: 1},
		{Field: "live", Op: services.OpGt, Value: true},
		{Field: "views", Op: services.OpLike, Value: "1"},
		{Field: "views", Op: services.OpIn, Value: []interface{}{}},
		{Field: "views", Value: "many"},
		{Field: "status", Value: "archived"},
	} {
		_, err := e.Records.List(ctx, "posts", services.ListQuery{
			Page: 1, PerPage: 10, Filters: []services.Filter{f},
		})
		assertKind(t, err, types.KindBadRequest)
	}
}

func TestRecordsFollowSchemaChanges(t *testing.T) {
	e := postsEngine(t)
	ctx := context.Background()
	rec := helpers.CreateTestRecord(t, e, "posts", map[string]interface{}{"title": "old"})

	coll, err := e.Collections.GetByName(ctx, "posts")
	require.NoError(t, err)
	schema := append(coll.Fields(), helpers.Field("summary", fields.Text, fields.Validation{}))
	_, err = e.Collections.Update(ctx, coll.ID, &services.CollectionInput{Schema: &schema})
	require.NoError(t, err)

	updated, err := e.Records.Update(ctx, "posts", rec.ID, map[string]interface{}{"summary": "new field"})
	require.NoError(t, err)
	summary, ok := updated.Get("summary")
	require.True(t, ok)
	assert.Equal(t, "new field", summary.String())
}

func TestRecordJSON(t *testing.T) {
	e := postsEngine(t)
	rec := helpers.CreateTestRecord(t, e, "posts", map[string]interface{}{"title": "json", "views": 2})

	raw, err := json.Marshal(rec)
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, rec.ID, decoded["id"])
	assert.Equal(t, "json", decoded["title"])
	assert.EqualValues(t, 2, decoded["views"])
	assert.Contains(t, decoded, "created")
	assert.Nil(t, decoded["live"])
}
