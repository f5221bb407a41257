package trees

import "tree-sync/core/reconcile"

// Attribute names of the tree schema. They double as column names.
const (
	AttrID             = "id"
	AttrStreet         = "strname"
	AttrHouseNumber    = "hausnr"
	AttrSpecies        = "art_bot"
	AttrSpeciesGerman  = "art_dtsch"
	AttrLocationNumber = "standortnr"
	AttrHeight         = "baumhoehe"
	AttrTrunkDiameter  = "stammdurch"
	AttrCrownDiameter  = "kronedurch"
	AttrLastChanged    = "aend_dat"
	AttrGenus          = "gattung"
	AttrGenusGerman    = "gattung_deutsch"
	AttrPlantingYear   = "pflanzjahr"
	AttrCircumference  = "stammumfg"
	AttrLatitude       = "lat"
	AttrLongitude      = "lng"
	AttrDistrict       = "bezirk"
)

var treeAttributes = []reconcile.Attribute{
	{Name: AttrStreet, Kind: reconcile.KindString},
	{Name: AttrHouseNumber, Kind: reconcile.KindString},
	{Name: AttrSpecies, Kind: reconcile.KindString},
	{Name: AttrSpeciesGerman, Kind: reconcile.KindString},
	{Name: AttrLocationNumber, Kind: reconcile.KindString},
	{Name: AttrHeight, Kind: reconcile.KindFloat},
	{Name: AttrTrunkDiameter, Kind: reconcile.KindFloat},
	{Name: AttrCrownDiameter, Kind: reconcile.KindFloat},
	{Name: AttrLastChanged, Kind: reconcile.KindDate},
	{Name: AttrGenus, Kind: reconcile.KindString},
	{Name: AttrGenusGerman, Kind: reconcile.KindString},
	{Name: AttrPlantingYear, Kind: reconcile.KindInt},
	{Name: AttrCircumference, Kind: reconcile.KindFloat},
	{Name: AttrLatitude, Kind: reconcile.KindFloat},
	{Name: AttrLongitude, Kind: reconcile.KindFloat},
	{Name: AttrDistrict, Kind: reconcile.KindString},
}

// Schema returns the tree schema shared by the canonical and staging tables.
func Schema() reconcile.Schema {
	attrs := make([]reconcile.Attribute, len(treeAttributes))
	copy(attrs, treeAttributes)
	return reconcile.Schema{
		IDAttribute:          AttrID,
		LastChangedAttribute: AttrLastChanged,
		Attributes:           attrs,
	}
}

// DefaultComparable returns every tree attribute. The updated_at audit column
// is not an attribute and never takes part in change detection.
func DefaultComparable() []string {
	names := make([]string, 0, len(treeAttributes))
	for _, attr := range treeAttributes {
		names = append(names, attr.Name)
	}
	return names
}
