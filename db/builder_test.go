package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

const usersDDL = `CREATE TABLE users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	email TEXT,
	age INTEGER
)`

type BuilderTestSuite struct {
	suite.Suite
	ctx  context.Context
	conn Conn
	b    *Builder
}

func (s *BuilderTestSuite) SetupTest() {
	s.ctx = context.Background()
	conn, err := Open(s.ctx, DataSource{Driver: "sqlite3", URL: ":memory:", MaxOpen: 1})
	s.Require().NoError(err)
	_, err = conn.ExecContext(s.ctx, usersDDL)
	s.Require().NoError(err)
	s.conn = conn
	s.b = New(conn)
	for _, u := range []map[string]any{
		{"name": "alice", "email": "alice@example.com", "age": 30},
		{"name": "bob", "email": "bob@example.com", "age": 25},
		{"name": "carol", "email": nil, "age": 41},
	} {
		_, err := s.b.Insert(s.ctx, "users", u)
		s.Require().NoError(err)
	}
}

func (s *BuilderTestSuite) TearDownTest() {
	_ = s.conn.Close()
}

func TestBuilderTestSuite(t *testing.T) {
	suite.Run(t, new(BuilderTestSuite))
}

func (s *BuilderTestSuite) TestInsert() {
	id, err := s.b.Insert(s.ctx, "users", map[string]any{"name": "dave", "age": 19})
	s.Require().NoError(err)
	s.Equal(int64(4), id)
	s.Equal(int64(4), s.b.InsertID())
	s.Equal(int64(1), s.b.AffectedRows())
	s.Equal("INSERT INTO users (age, name) VALUES (?, ?)", s.b.LastQuery())
	s.Equal([]any{19, "dave"}, s.b.LastArgs())
}

func (s *BuilderTestSuite) TestInsert_SetOverridesAndChains() {
	_, err := s.b.Set("email", "x@example.com").Insert(s.ctx, "users", map[string]any{"name": "eve"})
	s.Require().NoError(err)
	res, err := s.b.Where("name", "eve").Get(s.ctx, "users")
	s.Require().NoError(err)
	s.Equal("x@example.com", res.Row().MustGet()["email"])
}

func (s *BuilderTestSuite) TestInsert_Duplicate() {
	_, err := s.b.Insert(s.ctx, "users", map[string]any{"name": "alice"})
	s.ErrorIs(err, ErrDuplicateKey)
}

func (s *BuilderTestSuite) TestInsert_Empty() {
	_, err := s.b.Insert(s.ctx, "users", nil)
	s.ErrorIs(err, ErrNoSet)
}

func (s *BuilderTestSuite) TestGet() {
	res, err := s.b.Select("id", "name").Where("age >", 26).OrderBy("age", "desc").Get(s.ctx, "users")
	s.Require().NoError(err)
	s.Equal("SELECT id, name FROM users WHERE age > ? ORDER BY age DESC", s.b.LastQuery())
	s.Equal([]string{"id", "name"}, res.Columns())
	s.Equal(2, res.NumRows())
	s.Equal("carol", res.Rows()[0]["name"])
	s.Equal("alice", res.Rows()[1]["name"])
}

func (s *BuilderTestSuite) TestGet_LimitOffset() {
	res, err := s.b.OrderBy("id").Limit(1, 1).Get(s.ctx, "users")
	s.Require().NoError(err)
	s.Equal("SELECT * FROM users ORDER BY id ASC LIMIT 1 OFFSET 1", s.b.LastQuery())
	s.Equal(1, res.NumRows())
	s.Equal("bob", res.Row().MustGet()["name"])
}

func (s *BuilderTestSuite) TestGet_StateIsReset() {
	_, err := s.b.Where("name", "bob").Limit(1).Get(s.ctx, "users")
	s.Require().NoError(err)
	s.False(s.b.HasWhere())
	s.False(s.b.HasLimit())

	res, err := s.b.Get(s.ctx, "users")
	s.Require().NoError(err)
	s.Equal(3, res.NumRows())
}

func (s *BuilderTestSuite) TestGet_WhereVariants() {
	res, err := s.b.WhereIn("name", "alice", "carol").Get(s.ctx, "users")
	s.Require().NoError(err)
	s.Equal(2, res.NumRows())

	res, err = s.b.WhereIn("name").Get(s.ctx, "users")
	s.Require().NoError(err)
	s.Equal(0, res.NumRows())
	s.NotNil(res.Rows())
	s.True(res.Row().IsAbsent())

	res, err = s.b.Where("email", nil).Get(s.ctx, "users")
	s.Require().NoError(err)
	s.Equal(1, res.NumRows())

	res, err = s.b.WhereRaw("id IN (?)", []int{1, 2}).Get(s.ctx, "users")
	s.Require().NoError(err)
	s.Equal(2, res.NumRows())
	s.Equal("SELECT * FROM users WHERE id IN (?, ?)", s.b.LastQuery())

	res, err = s.b.WhereMap(map[string]any{"age <": 35, "email !=": nil}).Get(s.ctx, "users")
	s.Require().NoError(err)
	s.Equal("SELECT * FROM users WHERE (age < ? AND email IS NOT NULL)", s.b.LastQuery())
	s.Equal(2, res.NumRows())
}

func (s *BuilderTestSuite) TestGet_InvalidIdentifiers() {
	_, err := s.b.Select("name; --").Get(s.ctx, "users")
	s.ErrorIs(err, ErrInvalidIdentifier)

	_, err = s.b.Where("1=1 OR name", "x").Get(s.ctx, "users")
	s.ErrorIs(err, ErrInvalidIdentifier)

	_, err = s.b.Get(s.ctx, "users u")
	s.ErrorIs(err, ErrInvalidIdentifier)

	_, err = s.b.OrderBy("name", "sideways").Get(s.ctx, "users")
	s.Error(err)

	_, err = s.b.Get(s.ctx, "")
	s.ErrorIs(err, ErrNoTable)

	// errors don't leak into the next statement
	res, err := s.b.Get(s.ctx, "users")
	s.Require().NoError(err)
	s.Equal(3, res.NumRows())
}

func (s *BuilderTestSuite) TestUpdate() {
	n, err := s.b.Where("name", "bob").Update(s.ctx, "users", map[string]any{"age": 26})
	s.Require().NoError(err)
	s.Equal(int64(1), n)
	s.Equal("UPDATE users SET age = ? WHERE name = ?", s.b.LastQuery())
	s.Equal([]any{26, "bob"}, s.b.LastArgs())

	res, err := s.b.Where("name", "bob").Get(s.ctx, "users")
	s.Require().NoError(err)
	s.EqualValues(26, res.Row().MustGet()["age"])

	n, err = s.b.Where("name", "nobody").Update(s.ctx, "users", map[string]any{"age": 1})
	s.Require().NoError(err)
	s.Zero(n)

	_, err = s.b.Where("name", "bob").Update(s.ctx, "users", map[string]any{})
	s.ErrorIs(err, ErrNoSet)

	_, err = s.b.Where("name", "bob").Update(s.ctx, "users", map[string]any{"name": "alice"})
	s.ErrorIs(err, ErrDuplicateKey)
}

func (s *BuilderTestSuite) TestDelete() {
	_, err := s.b.Delete(s.ctx, "users")
	s.ErrorIs(err, ErrUnsafeDelete)

	n, err := s.b.Where("age >", 26).Delete(s.ctx, "users")
	s.Require().NoError(err)
	s.Equal(int64(2), n)
	s.Equal(int64(2), s.b.AffectedRows())

	total, err := s.b.CountAll(s.ctx, "users")
	s.Require().NoError(err)
	s.Equal(int64(1), total)
}

func (s *BuilderTestSuite) TestCount() {
	n, err := s.b.Where("age >", 26).Limit(1).OrderBy("id").CountAllResults(s.ctx, "users")
	s.Require().NoError(err)
	s.Equal(int64(2), n)
	s.Equal("SELECT COUNT(*) AS numrows FROM users WHERE age > ?", s.b.LastQuery())

	n, err = s.b.Where("age >", 26).CountAll(s.ctx, "users")
	s.Require().NoError(err)
	s.Equal(int64(3), n)
	s.Equal("SELECT COUNT(*) AS numrows FROM users", s.b.LastQuery())

	n, err = s.b.Where("bad col", 1).Select("name;").CountAll(s.ctx, "users")
	s.Require().NoError(err)
	s.Equal(int64(3), n)
}

func (s *BuilderTestSuite) TestGet_SelectRaw() {
	res, err := s.b.SelectRaw("MAX(age) AS oldest").Select("COUNT(*) AS n").Get(s.ctx, "users")
	s.Require().Error(err)
	s.ErrorIs(err, ErrInvalidIdentifier)

	res, err = s.b.SelectRaw("MAX(age) AS oldest").Where("email IS NOT", nil).Get(s.ctx, "users")
	s.Require().NoError(err)
	s.Equal("SELECT MAX(age) AS oldest FROM users WHERE email IS NOT NULL", s.b.LastQuery())
	row := res.Row().MustGet()
	s.EqualValues(30, row["oldest"])
}

func (s *BuilderTestSuite) TestListFields() {
	fields, err := s.b.ListFields(s.ctx, "users")
	s.Require().NoError(err)
	s.Equal([]string{"id", "name", "email", "age"}, fields)

	_, err = s.b.ListFields(s.ctx, "missing")
	s.Error(err)
}

func (s *BuilderTestSuite) TestDecode() {
	type user struct {
		ID    string  `db:"id"`
		Name  string  `db:"name"`
		Email *string `db:"email"`
		Age   int     `db:"age"`
	}
	res, err := s.b.OrderBy("id").Get(s.ctx, "users")
	s.Require().NoError(err)

	var one user
	s.Require().NoError(res.Row().MustGet().Decode(&one))
	s.Equal("1", one.ID)
	s.Equal("alice", one.Name)
	s.Equal(30, one.Age)

	var all []user
	s.Require().NoError(res.Decode(&all))
	s.Len(all, 3)
	s.Nil(all[2].Email)
	s.True(res.Row().MustGet().Get("name").IsPresent())
	s.True(res.Row().MustGet().Get("nope").IsAbsent())
}

func TestRebind(t *testing.T) {
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", rebind("pgx", "SELECT * FROM t WHERE a = ? AND b = ?"))
	assert.Equal(t, "SELECT * FROM t WHERE a = $1", rebind("postgres", "SELECT * FROM t WHERE a = ?"))
	assert.Equal(t, "SELECT * FROM t WHERE a = ?", rebind("mysql", "SELECT * FROM t WHERE a = ?"))
	assert.Equal(t, "SELECT * FROM t WHERE a = ?", rebind("sqlite3", "SELECT * FROM t WHERE a = ?"))
	assert.True(t, isPostgres("pgx"))
	assert.False(t, isPostgres("mysql"))
}

func TestRebind_ExprLiteral(t *testing.T) {
	clause, _ := Expr("note = 'why?'").Build()
	assert.Equal(t, "note = 'why$1'", rebind("pgx", clause))
	assert.Equal(t, "note = 'why?'", rebind("sqlite3", clause))

	clause, args := Raw("note = ?", "why?").Build()
	assert.Equal(t, "note = $1", rebind("pgx", clause))
	assert.Equal(t, []any{"why?"}, args)
}
