package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type thing struct {
	Base
	Name string `db:"name"`
}

func TestRegister_RejectsDuplicatesAndIncompleteDefs(t *testing.T) {
	reg := NewRegistry()

	require.NoError(t, Register[*thing](reg, Definition{Name: "thing", Table: "things"}))
	assert.Error(t, Register[*thing](reg, Definition{Name: "thing", Table: "things_v2"}))
	assert.Error(t, Register[*thing](reg, Definition{Name: "", Table: "things"}))
	assert.Error(t, Register[*thing](reg, Definition{Name: "other", Table: ""}))
}

func TestRoot_FollowsExtendsChain(t *testing.T) {
	reg := NewRegistry()
	MustRegister[*thing](reg, Definition{Name: "document", Table: "documents"})
	MustRegister[*thing](reg, Definition{Name: "contract", Table: "contracts", Extends: "document"})
	MustRegister[*thing](reg, Definition{Name: "nda", Table: "ndas", Extends: "contract"})

	root, err := reg.Root("nda")
	require.NoError(t, err)
	assert.Equal(t, "document", root.Name)

	root, err = reg.Root("document")
	require.NoError(t, err)
	assert.Equal(t, "document", root.Name)
}

func TestRoot_DanglingExtendsFails(t *testing.T) {
	reg := NewRegistry()
	MustRegister[*thing](reg, Definition{Name: "orphan", Table: "orphans", Extends: "missing"})

	_, err := reg.Root("orphan")
	assert.Error(t, err)
	assert.Error(t, reg.Validate())
}

func TestRoot_CyclicExtendsFails(t *testing.T) {
	reg := NewRegistry()
	MustRegister[*thing](reg, Definition{Name: "a", Table: "a", Extends: "b"})
	MustRegister[*thing](reg, Definition{Name: "b", Table: "b", Extends: "a"})

	_, err := reg.Root("a")
	assert.Error(t, err)
}

func TestAll_SortedByName(t *testing.T) {
	reg := NewRegistry()
	MustRegister[*thing](reg, Definition{Name: "zebra", Table: "z"})
	MustRegister[*thing](reg, Definition{Name: "apple", Table: "a"})
	MustRegister[*thing](reg, Definition{Name: "mango", Table: "m"})

	defs := reg.All()
	require.Len(t, defs, 3)
	assert.Equal(t, "apple", defs[0].Name)
	assert.Equal(t, "mango", defs[1].Name)
	assert.Equal(t, "zebra", defs[2].Name)
}

func TestMustGet_PanicsOnUnregistered(t *testing.T) {
	reg := NewRegistry()
	assert.Panics(t, func() { reg.MustGet("ghost") })
}
