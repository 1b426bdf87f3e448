package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathOf_Normalizes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "root slash", in: "/", want: ""},
		{name: "plain", in: "keys/db", want: "keys/db"},
		{name: "leading and trailing", in: "/keys/db/", want: "keys/db"},
		{name: "repeated", in: "keys//db///pw", want: "keys/db/pw"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, PathOf(tt.in).String())
		})
	}
}

func TestPath_Navigation(t *testing.T) {
	t.Parallel()

	p := PathOf("keys/db/password")

	assert.Equal(t, "password", p.Name())
	assert.Equal(t, "keys/db", p.Parent().String())
	assert.Equal(t, "keys", p.Parent().Parent().String())
	assert.True(t, p.Parent().Parent().Parent().IsRoot())
	assert.True(t, Path{}.Parent().IsRoot())
	assert.Equal(t, "", Path{}.Name())
	assert.Equal(t, "keys", PathOf("keys").Name())
}

func TestPath_Append(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "keys/db", PathOf("keys").Append("db").String())
	assert.Equal(t, "keys/db", PathOf("keys").Append("db/").String())
	assert.Equal(t, "db", Path{}.Append("db/").String())
}

func TestPath_RelativeTo(t *testing.T) {
	t.Parallel()

	p := PathOf("keys/db/password")

	assert.Equal(t, "password", p.RelativeTo(p.Parent()))
	assert.Equal(t, "db/password", p.RelativeTo(PathOf("keys")))
	assert.Equal(t, "keys/db/password", p.RelativeTo(Path{}))
	assert.Equal(t, "keys/db/password", p.RelativeTo(PathOf("other")))
	// prefix must end on a segment boundary
	assert.Equal(t, "keys/db/password", p.RelativeTo(PathOf("key")))
}
