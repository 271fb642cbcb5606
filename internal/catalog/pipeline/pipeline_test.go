package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func docs() []bson.M {
	return []bson.M{
		{"product_id": "P1", "name": "Phone", "category": "Electronics", "price": 30000.0,
			"reviews": bson.A{bson.M{"rating": int32(5)}, bson.M{"rating": int32(3)}}},
		{"product_id": "P2", "name": "Laptop", "category": "Electronics", "price": 60000.0,
			"reviews": bson.A{bson.M{"rating": 3.5}}},
		{"product_id": "P3", "name": "Shirt", "category": "Fashion", "price": 1500.0, "reviews": bson.A{}},
		{"product_id": "P4", "name": "Jeans", "category": "Fashion", "price": 2500.0},
	}
}

func TestRenderReviewPipeline(t *testing.T) {
	p := New(
		Unwind{Path: "reviews"},
		Group{Key: "product_id", Fields: []Accumulator{First("product_name", "name"), Avg("avg_rating", "reviews.rating")}},
		Where(Gte("avg_rating", 4.0)),
	)
	require.NoError(t, p.Validate())

	want := []bson.D{
		{{Key: "$unwind", Value: "$reviews"}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$product_id"},
			{Key: "product_name", Value: bson.D{{Key: "$first", Value: "$name"}}},
			{Key: "avg_rating", Value: bson.D{{Key: "$avg", Value: "$reviews.rating"}}},
		}}},
		{{Key: "$match", Value: bson.D{{Key: "avg_rating", Value: bson.D{{Key: "$gte", Value: 4.0}}}}}},
	}
	got := p.Mongo()
	require.Len(t, got, len(want))
	for i := range want {
		require.Equal(t, want[i], got[i])
	}
}

func TestMatchFilterMergesSameField(t *testing.T) {
	m := Where(Eq("category", "Electronics"), Lt("price", 50000.0), Gte("price", 100.0))
	require.Equal(t, bson.D{
		{Key: "category", Value: "Electronics"},
		{Key: "price", Value: bson.D{{Key: "$lt", Value: 50000.0}, {Key: "$gte", Value: 100.0}}},
	}, m.Filter())
}

func TestUnwindSkipsEmptyAndMissing(t *testing.T) {
	out, err := New(Unwind{Path: "reviews"}).Run(docs())
	require.NoError(t, err)
	require.Len(t, out, 3)
	for _, d := range out {
		require.NotEqual(t, "P3", d["product_id"])
		require.NotEqual(t, "P4", d["product_id"])
	}
}

func TestRunDoesNotMutateInput(t *testing.T) {
	in := docs()
	_, err := New(Unwind{Path: "reviews"}).Run(in)
	require.NoError(t, err)
	_, isArr := in[0]["reviews"].(bson.A)
	require.True(t, isArr)
}

func TestGroupAverageAndFirst(t *testing.T) {
	out, err := New(
		Unwind{Path: "reviews"},
		Group{Key: "product_id", Fields: []Accumulator{First("product_name", "name"), Avg("avg_rating", "reviews.rating")}},
		Where(Gte("avg_rating", 4.0)),
	).Run(docs())
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "P1", out[0]["_id"])
	require.Equal(t, "Phone", out[0]["product_name"])
	require.InDelta(t, 4.0, out[0]["avg_rating"], 1e-12)
}

func TestGroupCountAndSort(t *testing.T) {
	out, err := New(
		Group{Key: "category", Fields: []Accumulator{Avg("avg_price", "price"), Count("product_count")}},
		By(Desc("avg_price"), Asc("_id")),
	).Run(docs())
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "Electronics", out[0]["_id"])
	require.InDelta(t, 45000.0, out[0]["avg_price"], 1e-9)
	require.Equal(t, int64(2), out[0]["product_count"])
	require.Equal(t, "Fashion", out[1]["_id"])
	require.InDelta(t, 2000.0, out[1]["avg_price"], 1e-9)
}

func TestSortTieBreak(t *testing.T) {
	in := []bson.M{{"_id": "b", "v": 1.0}, {"_id": "a", "v": 1.0}, {"_id": "c", "v": 2.0}}
	out, err := New(By(Desc("v"), Asc("_id"))).Run(in)
	require.NoError(t, err)
	require.Equal(t, []any{"c", "a", "b"}, []any{out[0]["_id"], out[1]["_id"], out[2]["_id"]})
}

func TestMatchComparesAcrossNumericWidths(t *testing.T) {
	m := Where(Lt("price", 50000))
	require.True(t, m.Matches(bson.M{"price": 49999.5}))
	require.False(t, m.Matches(bson.M{"price": int64(50000)}))
	require.False(t, m.Matches(bson.M{"price": "cheap"}))
	require.False(t, m.Matches(bson.M{}))
}

func TestProjectDropsID(t *testing.T) {
	p := Project{Include: []string{"name", "price", "stock"}, ExcludeID: true}
	got := p.Apply(bson.M{"_id": "x", "product_id": "P1", "name": "Phone", "price": 10.0, "stock": int32(3)})
	require.Equal(t, bson.M{"name": "Phone", "price": 10.0, "stock": int32(3)}, got)
	require.Equal(t, bson.D{{Key: "_id", Value: 0}, {Key: "name", Value: 1}, {Key: "price", Value: 1}, {Key: "stock", Value: 1}}, p.Spec())
}

func TestValidateRejectsMalformedStages(t *testing.T) {
	cases := []Pipeline{
		nil,
		New(Unwind{Path: "$reviews"}),
		New(Group{Key: "product_id", Fields: []Accumulator{{Name: "x", Op: "$median", Path: "price"}}}),
		New(Group{Key: "product_id", Fields: []Accumulator{First("a", "name"), First("a", "name")}}),
		New(Where(Condition{Field: "price", Op: "$regex", Value: "x"})),
		New(By()),
		New(Sort{Keys: []SortKey{{Field: "a..b"}}}),
	}
	for i, p := range cases {
		_, err := p.Run(docs())
		require.Error(t, err, "case %d", i)
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	type row struct {
		ID    string  `bson:"_id"`
		Avg   float64 `bson:"avg"`
		Count int     `bson:"count"`
	}
	var r row
	require.NoError(t, Decode(bson.M{"_id": "Electronics", "avg": 12.5, "count": int64(4)}, &r))
	require.Equal(t, row{ID: "Electronics", Avg: 12.5, Count: 4}, r)

	m, err := ToDocument(struct {
		Name string `bson:"name"`
	}{Name: "Phone"})
	require.NoError(t, err)
	require.Equal(t, "Phone", m["name"])
}
