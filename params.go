package lshgo

import (
	"bytes"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	gojson "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/lshgo/codec"
	"github.com/hupe1980/lshgo/internal/conv"
	"github.com/hupe1980/lshgo/internal/lsh"
)

// Distance is the metric candidates are ranked by.
type Distance = lsh.DistanceFunction

const (
	DistanceUnknown      = lsh.DistanceUnknown
	NegativeInnerProduct = lsh.NegativeInnerProduct
	EuclideanSquared     = lsh.EuclideanSquared
)

// Family is the locality-sensitive hash family.
type Family = lsh.Family

const (
	FamilyUnknown = lsh.FamilyUnknown
	Hyperplane    = lsh.Hyperplane
	CrossPolytope = lsh.CrossPolytope
)

// Storage is the bucket layout backing each hash table.
type Storage = lsh.StorageHashTable

const (
	StorageUnknown         = lsh.StorageUnknown
	FlatHashTable          = lsh.FlatHashTable
	BitPackedFlatHashTable = lsh.BitPackedFlatHashTable
	STLHashTable           = lsh.STLHashTable
	LinearProbingHashTable = lsh.LinearProbingHashTable
)

// DefaultSeed seeds the hash functions unless WithSeed overrides it.
const DefaultSeed = lsh.DefaultSeed

// unknownName is the canonical name of every unknown variant.
const unknownName = "unknown"

type named[T comparable] struct {
	name  string
	value T
}

var distanceNames = [...]named[Distance]{
	{unknownName, DistanceUnknown},
	{"negative_inner_product", NegativeInnerProduct},
	{"euclidean_squared", EuclideanSquared},
}

var familyNames = [...]named[Family]{
	{unknownName, FamilyUnknown},
	{"hyperplane", Hyperplane},
	{"cross_polytope", CrossPolytope},
}

var storageNames = [...]named[Storage]{
	{unknownName, StorageUnknown},
	{"flat_hash_table", FlatHashTable},
	{"bit_packed_flat_hash_table", BitPackedFlatHashTable},
	{"stl_hash_table", STLHashTable},
	{"linear_probing_hash_table", LinearProbingHashTable},
}

func lookup[T comparable](table []named[T], name string) (T, bool) {
	for _, e := range table {
		if e.name == name {
			return e.value, true
		}
	}
	return table[0].value, false
}

func nameOf[T comparable](table []named[T], v T) string {
	for _, e := range table {
		if e.value == v {
			return e.name
		}
	}
	return unknownName
}

func names[T comparable](table []named[T]) []string {
	out := make([]string, 0, len(table)-1)
	for _, e := range table[1:] {
		out = append(out, e.name)
	}
	return out
}

func parse[T comparable](table []named[T], kind, name string) (T, error) {
	v, ok := lookup(table, name)
	if !ok || name == unknownName {
		return v, fmt.Errorf("%w: unknown %s %q (valid: %s)", ErrConfiguration, kind, name, strings.Join(names(table), ", "))
	}
	return v, nil
}

// ParseDistance resolves a distance name and fails on unknown names.
func ParseDistance(name string) (Distance, error) {
	return parse(distanceNames[:], "distance", name)
}

// ParseFamily resolves an LSH family name and fails on unknown names.
func ParseFamily(name string) (Family, error) {
	return parse(familyNames[:], "lsh family", name)
}

// ParseStorage resolves a storage name and fails on unknown names.
func ParseStorage(name string) (Storage, error) {
	return parse(storageNames[:], "storage", name)
}

// DistanceName returns the canonical name of d ("unknown" for unmapped values).
func DistanceName(d Distance) string { return nameOf(distanceNames[:], d) }

// FamilyName returns the canonical name of f ("unknown" for unmapped values).
func FamilyName(f Family) string { return nameOf(familyNames[:], f) }

// StorageName returns the canonical name of s ("unknown" for unmapped values).
func StorageName(s Storage) string { return nameOf(storageNames[:], s) }

// DistanceNames lists the accepted distance names.
func DistanceNames() []string { return names(distanceNames[:]) }

// FamilyNames lists the accepted LSH family names.
func FamilyNames() []string { return names(familyNames[:]) }

// StorageNames lists the accepted storage names.
func StorageNames() []string { return names(storageNames[:]) }

// Mapping keys used by AsMap and ParameterSetFromMap.
const (
	KeyPoints                  = "points"
	KeyDimension               = "dimension"
	KeyHashFunctions           = "hash_functions"
	KeyHashTables              = "hash_tables"
	KeySeed                    = "seed"
	KeyFamily                  = "lsh_family"
	KeyDistance                = "distance"
	KeyStorage                 = "storage"
	KeyRotations               = "rotations"
	KeyThreads                 = "threads"
	KeyLastCPDimension         = "last_cp_dimension"
	KeyFeatureHashingDimension = "feature_hashing_dimension"
)

// ParameterSet describes how to build an Index over n points of dimension d.
//
// ParameterSet is an immutable value: every With* method returns a modified
// copy and leaves the receiver untouched. The zero value is not usable; start
// from NewParameterSet.
type ParameterSet struct {
	points int
	p      lsh.Parameters
}

// NewParameterSet returns engine defaults for n points of dimension d under
// the squared Euclidean distance.
func NewParameterSet(n, d int) (ParameterSet, error) {
	if n <= 0 {
		return ParameterSet{}, fmt.Errorf("%w: number of points must be positive, got %d", ErrConfiguration, n)
	}
	if d <= 0 {
		return ParameterSet{}, fmt.Errorf("%w: dimension must be positive, got %d", ErrConfiguration, d)
	}

	p, err := lsh.DefaultParameters(n, d, EuclideanSquared, true)
	if err != nil {
		return ParameterSet{}, translateError(err)
	}
	return ParameterSet{points: n, p: p}, nil
}

// WithDefaults recomputes every field from engine defaults for the named
// distance. Unknown names select DistanceUnknown, which index construction
// rejects.
func (ps ParameterSet) WithDefaults(distance string) ParameterSet {
	d, _ := lookup(distanceNames[:], distance)
	p, err := lsh.DefaultParameters(ps.points, ps.p.Dimension, d, true)
	if err != nil {
		// only a zero-value receiver gets here
		return ps
	}
	ps.p = p
	return ps
}

// WithDistance sets the distance by name. Unknown names select DistanceUnknown.
func (ps ParameterSet) WithDistance(name string) ParameterSet {
	ps.p.Distance, _ = lookup(distanceNames[:], name)
	return ps
}

// WithFamily sets the LSH family by name. Unknown names select FamilyUnknown.
//
// The number of hash functions is not recomputed; use WithHashBits for that.
func (ps ParameterSet) WithFamily(name string) ParameterSet {
	ps.p.Family, _ = lookup(familyNames[:], name)
	return ps
}

// WithStorage sets the storage by name. Unknown names select StorageUnknown.
func (ps ParameterSet) WithStorage(name string) ParameterSet {
	ps.p.Storage, _ = lookup(storageNames[:], name)
	return ps
}

// WithNumHashFunctions sets the number of hash functions per table.
// The value is validated at index construction.
func (ps ParameterSet) WithNumHashFunctions(k int) ParameterSet {
	ps.p.K = k
	return ps
}

// WithNumHashTables sets the number of hash tables.
func (ps ParameterSet) WithNumHashTables(l int) ParameterSet {
	ps.p.L = l
	return ps
}

// WithRotations sets the number of pseudo-random rotations of the cross-polytope family.
func (ps ParameterSet) WithRotations(r int) ParameterSet {
	ps.p.NumRotations = r
	return ps
}

// WithSeed sets the seed of the hash function generator.
func (ps ParameterSet) WithSeed(seed uint64) ParameterSet {
	ps.p.Seed = seed
	return ps
}

// WithSetupThreads bounds the number of tables built in parallel (0 = GOMAXPROCS).
func (ps ParameterSet) WithSetupThreads(n int) ParameterSet {
	ps.p.NumSetupThreads = n
	return ps
}

// WithLastCPDimension sets the dimension of the last cross-polytope hash function.
func (ps ParameterSet) WithLastCPDimension(n int) ParameterSet {
	ps.p.LastCPDimension = n
	return ps
}

// WithFeatureHashingDimension folds inputs into n dimensions before
// cross-polytope hashing (n <= 0 disables feature hashing).
func (ps ParameterSet) WithFeatureHashingDimension(n int) ParameterSet {
	ps.p.FeatureHashingDimension = n
	return ps
}

// WithHashBits recomputes the number of hash functions (and the last
// cross-polytope dimension) for the current family so that each table key
// carries bits bits.
func (ps ParameterSet) WithHashBits(bits int) (ParameterSet, error) {
	if err := lsh.ComputeNumberOfHashFunctions(bits, &ps.p); err != nil {
		return ParameterSet{}, translateError(err)
	}
	return ps, nil
}

// Points returns the number of points the parameters were computed for.
func (ps ParameterSet) Points() int { return ps.points }

// Dimension returns the point dimension.
func (ps ParameterSet) Dimension() int { return ps.p.Dimension }

// NumHashFunctions returns the number of hash functions per table.
func (ps ParameterSet) NumHashFunctions() int { return ps.p.K }

// NumHashTables returns the number of hash tables.
func (ps ParameterSet) NumHashTables() int { return ps.p.L }

// Distance returns the distance.
func (ps ParameterSet) Distance() Distance { return ps.p.Distance }

// Family returns the LSH family.
func (ps ParameterSet) Family() Family { return ps.p.Family }

// Storage returns the storage.
func (ps ParameterSet) Storage() Storage { return ps.p.Storage }

// Rotations returns the number of pseudo-random rotations.
func (ps ParameterSet) Rotations() int { return ps.p.NumRotations }

// Seed returns the seed of the hash function generator.
func (ps ParameterSet) Seed() uint64 { return ps.p.Seed }

// SetupThreads returns the table construction parallelism (0 = GOMAXPROCS).
func (ps ParameterSet) SetupThreads() int { return ps.p.NumSetupThreads }

// LastCPDimension returns the dimension of the last cross-polytope hash function.
func (ps ParameterSet) LastCPDimension() int { return ps.p.LastCPDimension }

// FeatureHashingDimension returns the feature hashing dimension (<= 0 when disabled).
func (ps ParameterSet) FeatureHashingDimension() int { return ps.p.FeatureHashingDimension }

// AsMap returns every field keyed by its canonical name. Enum fields are
// rendered as names, "unknown" for unmapped values. The map is a snapshot.
func (ps ParameterSet) AsMap() map[string]any {
	return map[string]any{
		KeyPoints:                  ps.points,
		KeyDimension:               ps.p.Dimension,
		KeyHashFunctions:           ps.p.K,
		KeyHashTables:              ps.p.L,
		KeySeed:                    ps.p.Seed,
		KeyFamily:                  FamilyName(ps.p.Family),
		KeyDistance:                DistanceName(ps.p.Distance),
		KeyStorage:                 StorageName(ps.p.Storage),
		KeyRotations:               ps.p.NumRotations,
		KeyThreads:                 ps.p.NumSetupThreads,
		KeyLastCPDimension:         ps.p.LastCPDimension,
		KeyFeatureHashingDimension: ps.p.FeatureHashingDimension,
	}
}

// ParameterSetFromMap rebuilds a ParameterSet from a mapping in the AsMap
// layout. points and dimension are required; missing fields keep the engine
// defaults for (points, dimension). Numbers may be any integer type or an
// integral float, as produced by JSON and YAML decoders. Unknown keys fail.
func ParameterSetFromMap(m map[string]any) (ParameterSet, error) {
	for _, k := range slices.Sorted(maps.Keys(m)) {
		if !slices.Contains(mapKeys[:], k) {
			return ParameterSet{}, fmt.Errorf("%w: unknown parameter %q", ErrConfiguration, k)
		}
	}

	n, err := requiredInt(m, KeyPoints)
	if err != nil {
		return ParameterSet{}, err
	}
	d, err := requiredInt(m, KeyDimension)
	if err != nil {
		return ParameterSet{}, err
	}
	ps, err := NewParameterSet(n, d)
	if err != nil {
		return ParameterSet{}, err
	}

	ints := []struct {
		key string
		dst *int
	}{
		{KeyHashFunctions, &ps.p.K},
		{KeyHashTables, &ps.p.L},
		{KeyRotations, &ps.p.NumRotations},
		{KeyThreads, &ps.p.NumSetupThreads},
		{KeyLastCPDimension, &ps.p.LastCPDimension},
		{KeyFeatureHashingDimension, &ps.p.FeatureHashingDimension},
	}
	for _, f := range ints {
		v, ok := m[f.key]
		if !ok {
			continue
		}
		if *f.dst, err = conv.ToInt(v); err != nil {
			return ParameterSet{}, fmt.Errorf("%w: parameter %s: %w", ErrConfiguration, f.key, err)
		}
	}

	if v, ok := m[KeySeed]; ok {
		if ps.p.Seed, err = conv.ToUint64(v); err != nil {
			return ParameterSet{}, fmt.Errorf("%w: parameter %s: %w", ErrConfiguration, KeySeed, err)
		}
	}

	enums := []struct {
		key string
		set func(ParameterSet, string) ParameterSet
	}{
		{KeyDistance, ParameterSet.WithDistance},
		{KeyFamily, ParameterSet.WithFamily},
		{KeyStorage, ParameterSet.WithStorage},
	}
	for _, f := range enums {
		v, ok := m[f.key]
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return ParameterSet{}, fmt.Errorf("%w: parameter %s must be a string, got %T", ErrConfiguration, f.key, v)
		}
		ps = f.set(ps, s)
	}

	return ps, nil
}

var mapKeys = [...]string{
	KeyPoints, KeyDimension, KeyHashFunctions, KeyHashTables, KeySeed, KeyFamily,
	KeyDistance, KeyStorage, KeyRotations, KeyThreads, KeyLastCPDimension, KeyFeatureHashingDimension,
}

func requiredInt(m map[string]any, key string) (int, error) {
	v, ok := m[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing parameter %s", ErrConfiguration, key)
	}
	n, err := conv.ToInt(v)
	if err != nil {
		return 0, fmt.Errorf("%w: parameter %s: %w", ErrConfiguration, key, err)
	}
	return n, nil
}

// String renders the parameters in AsMap key order.
func (ps ParameterSet) String() string {
	m := ps.AsMap()
	var b strings.Builder
	b.WriteString("ParameterSet{")
	for i, k := range mapKeys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %v", k, m[k])
	}
	b.WriteString("}")
	return b.String()
}

// MarshalJSON implements json.Marshaler.
func (ps ParameterSet) MarshalJSON() ([]byte, error) {
	return gojson.Marshal(ps.AsMap())
}

// UnmarshalJSON implements json.Unmarshaler. Numbers are decoded exactly,
// so 64-bit seeds survive the round trip.
func (ps *ParameterSet) UnmarshalJSON(data []byte) error {
	dec := gojson.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	out, err := ParameterSetFromMap(m)
	if err != nil {
		return err
	}
	*ps = out
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (ps ParameterSet) MarshalYAML() (any, error) {
	return ps.AsMap(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (ps *ParameterSet) UnmarshalYAML(value *yaml.Node) error {
	var m map[string]any
	if err := value.Decode(&m); err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	out, err := ParameterSetFromMap(m)
	if err != nil {
		return err
	}
	*ps = out
	return nil
}

// SaveParameters writes ps to w using c (codec.Default if nil).
func SaveParameters(w io.Writer, ps ParameterSet, c codec.Codec) error {
	if c == nil {
		c = codec.Default
	}
	data, err := c.Marshal(ps)
	if err != nil {
		return fmt.Errorf("encode parameters (%s): %w", c.Name(), err)
	}
	_, err = w.Write(data)
	return err
}

// LoadParameters reads a ParameterSet written by SaveParameters.
func LoadParameters(r io.Reader, c codec.Codec) (ParameterSet, error) {
	if c == nil {
		c = codec.Default
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return ParameterSet{}, err
	}
	var ps ParameterSet
	if err := c.Unmarshal(data, &ps); err != nil {
		return ParameterSet{}, err
	}
	return ps, nil
}
