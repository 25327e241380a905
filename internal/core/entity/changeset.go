package entity

// ChangeOp is the kind of mutation staged for an entity in one commit.
type ChangeOp string

const (
	OpCreated  ChangeOp = "created"
	OpModified ChangeOp = "modified"
	OpDeleted  ChangeOp = "deleted"
)

// ChangeRecord identifies one entity affected by a commit. Records are
// ephemeral: rebuilt for every save, handed to the cache-invalidation
// collaborator after a successful commit, then discarded.
type ChangeRecord struct {
	EntityType string
	EntityID   int64
	Op         ChangeOp
}
