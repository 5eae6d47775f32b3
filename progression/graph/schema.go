package graph

// AvailabilityMode selects how a node's graph-parents gate studying it.
type AvailabilityMode string

const (
	// ModeAlways leaves the node studyable regardless of graph-parents.
	ModeAlways AvailabilityMode = "ALWAYS"
	// ModeRequiresNodes demands every listed parent be studied first.
	ModeRequiresNodes AvailabilityMode = "REQUIRES_NODES"
)

// Position places a node on the editor canvas.
type Position struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// AvailabilityDocument is the per-node availability block as authored.
type AvailabilityDocument struct {
	Mode                  string   `json:"mode,omitempty" yaml:"mode" jsonschema:"title=Availability mode,enum=ALWAYS,enum=REQUIRES_NODES,description=How graph-parents gate studying this node"`
	RequiredNodeIDs       []string `json:"requiredNodeIds,omitempty" yaml:"requiredNodeIds" jsonschema:"description=Node ids that must be studied before this one"`
	AllowIndependentStudy bool     `json:"allowIndependentStudy,omitempty" yaml:"allowIndependentStudy" jsonschema:"description=Escape hatch allowing study even when graph-parents are unstudied"`
}

// UnlocksDocument lists what studying the node opens up.
type UnlocksDocument struct {
	NodeIDs       []string `json:"nodeIds,omitempty" yaml:"nodeIds" jsonschema:"description=Node ids revealed by studying this node"`
	TabIDs        []string `json:"tabIds,omitempty" yaml:"tabIds" jsonschema:"description=Tab ids revealed by studying this node"`
	PermissionIDs []string `json:"permissionIds,omitempty" yaml:"permissionIds" jsonschema:"description=Permission ids granted on study"`
}

// GatingDocument is the recipe-entry layer of requirements, independent of the
// availability block; both layers must pass for a node to be studyable.
type GatingDocument struct {
	RequiredLevel      int      `json:"requiredLevel,omitempty" yaml:"requiredLevel" jsonschema:"minimum=1,description=Minimum player level to study"`
	RequiresPermission bool     `json:"requiresPermission,omitempty" yaml:"requiresPermission" jsonschema:"description=Whether an external permission gates this node"`
	PermissionID       string   `json:"permissionId,omitempty" yaml:"permissionId" jsonschema:"description=Permission checked when requiresPermission is set"`
	RequiredRecipeIDs  []string `json:"requiredRecipeIds,omitempty" yaml:"requiredRecipeIds" jsonschema:"description=Recipes that must be studied before this one"`
	BlockingRecipeIDs  []string `json:"blockingRecipeIds,omitempty" yaml:"blockingRecipeIds" jsonschema:"description=Mutually exclusive recipes reset when this one is studied"`
	UnlockingRecipeIDs []string `json:"unlockingRecipeIds,omitempty" yaml:"unlockingRecipeIds" jsonschema:"description=Recipes whose availability this study enables"`
	Tags               []string `json:"tags,omitempty" yaml:"tags" jsonschema:"description=Classification tags used by list filtering"`
}

// NodeDocument models one graph node as it appears on disk. A node without a
// recipeId is a custom milestone with no crafting effect.
type NodeDocument struct {
	ID                string               `json:"id" yaml:"id" jsonschema:"title=Node id,pattern=^[a-z0-9_\\-]*$,description=Stable identifier for the node; generated when blank on upsert"`
	Tab               string               `json:"tab,omitempty" yaml:"tab" jsonschema:"description=Owning tab id; blank maps to default"`
	RecipeID          string               `json:"recipeId,omitempty" yaml:"recipeId" jsonschema:"description=Host recipe gated by this node; blank marks a custom milestone"`
	DisplayName       string               `json:"displayName,omitempty" yaml:"displayName"`
	NodeTitle         string               `json:"nodeTitle,omitempty" yaml:"nodeTitle"`
	CustomIcon        string               `json:"customIcon,omitempty" yaml:"customIcon" jsonschema:"description=Icon path canonicalized to a namespace:path resource id"`
	StudyCost         int                  `json:"studyCost" yaml:"studyCost" jsonschema:"minimum=0,description=Learning points debited on study"`
	Position          Position             `json:"position" yaml:"position"`
	Availability      AvailabilityDocument `json:"availability" yaml:"availability"`
	Unlocks           UnlocksDocument      `json:"unlocks" yaml:"unlocks"`
	Gating            GatingDocument       `json:"gating" yaml:"gating"`
	GrantsCraftAccess *bool                `json:"grantsCraftAccess,omitempty" yaml:"grantsCraftAccess" jsonschema:"description=Whether studying grants crafting access; defaults to true"`
}

// TabDocument models a named sub-graph, itself lockable.
type TabDocument struct {
	ID                  string   `json:"id" yaml:"id" jsonschema:"title=Tab id,pattern=^[a-z0-9_\\-]+$"`
	Title               string   `json:"title,omitempty" yaml:"title"`
	Icon                string   `json:"icon,omitempty" yaml:"icon"`
	RequiredTabIDs      []string `json:"requiredTabIds,omitempty" yaml:"requiredTabIds" jsonschema:"description=Tabs that must be unlocked before this one"`
	RequiredNodeIDs     []string `json:"requiredNodeIds,omitempty" yaml:"requiredNodeIds" jsonschema:"description=Nodes that must be studied before this tab unlocks"`
	RequiredPermissions []string `json:"requiredPermissions,omitempty" yaml:"requiredPermissions" jsonschema:"description=Permissions required to see this tab"`
}

// Document represents a whole graph configuration file. The loader accepts
// JSON and YAML sources; the schema models the canonical JSON form authored by
// the editor.
type Document struct {
	Nodes []NodeDocument `json:"nodes" yaml:"nodes"`
	Tabs  []TabDocument  `json:"tabs" yaml:"tabs"`
}

// DefaultTabID receives nodes whose tab is left blank.
const DefaultTabID = "default"

// Node is the normalized in-memory form of a NodeDocument.
type Node struct {
	ID                 string
	TabID              string
	RecipeID           string
	DisplayName        string
	NodeTitle          string
	Icon               string
	StudyCost          int
	RequiredLevel      int
	RequiresPermission bool
	PermissionID       string
	RequiredRecipeIDs  []string
	BlockingRecipeIDs  []string
	UnlockingRecipeIDs []string
	Tags               []string
	Position           Position
	Mode               AvailabilityMode
	RequiredNodeIDs    []string
	AllowIndependent   bool
	UnlockNodeIDs      []string
	UnlockTabIDs       []string
	UnlockPermissions  []string
	GrantsCraftAccess  bool
}

// IsCustom reports whether the node is a recipe-less milestone.
func (n *Node) IsCustom() bool {
	return n.RecipeID == ""
}

// Tab is the normalized in-memory form of a TabDocument.
type Tab struct {
	ID                  string
	Title               string
	Icon                string
	RequiredTabIDs      []string
	RequiredNodeIDs     []string
	RequiredPermissions []string
}
