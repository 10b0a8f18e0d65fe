package digest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeStableForEqualValues(t *testing.T) {
	a := Seq{Int(1), Str("x"), Bytes("y")}
	b := Seq{Int(1), Str("x"), Bytes("y")}

	da, err := Compute(a)
	require.NoError(t, err)
	db, err := Compute(b)
	require.NoError(t, err)
	require.Equal(t, da, db)
}

func TestComputeDiffersOnElementChange(t *testing.T) {
	a := Seq{Int(1), Str("x")}
	b := Seq{Int(2), Str("x")}

	da, err := Compute(a)
	require.NoError(t, err)
	db, err := Compute(b)
	require.NoError(t, err)
	require.NotEqual(t, da, db)
}

func TestMapCanonicalizationIgnoresOrder(t *testing.T) {
	m1 := Map{{Key: Str("a"), Value: Int(1)}, {Key: Str("b"), Value: Int(2)}}
	m2 := Map{{Key: Str("b"), Value: Int(2)}, {Key: Str("a"), Value: Int(1)}}

	d1, err := Compute(m1)
	require.NoError(t, err)
	d2, err := Compute(m2)
	require.NoError(t, err)
	require.Equal(t, d1, d2)
}

func TestSetCanonicalizationIgnoresOrder(t *testing.T) {
	s1 := Set{Int(1), Int(2), Int(3)}
	s2 := Set{Int(3), Int(1), Int(2)}

	d1, err := Compute(s1)
	require.NoError(t, err)
	d2, err := Compute(s2)
	require.NoError(t, err)
	require.Equal(t, d1, d2)
}

func TestByteStringAndTextStringDoNotCollide(t *testing.T) {
	db, err := Compute(Bytes("ab"))
	require.NoError(t, err)
	ds, err := Compute(Str("ab"))
	require.NoError(t, err)
	require.NotEqual(t, db, ds)
}

func TestUnhashableRejected(t *testing.T) {
	_, err := Compute(Unhashable{Reason: "future"})
	require.ErrorIs(t, err, ErrUnhashable)
}

func TestCycleRejected(t *testing.T) {
	rec := &Record{TypeModule: "m", TypeName: "T"}
	rec.Fields = Map{{Key: Str("self"), Value: rec}}

	_, err := Compute(rec)
	require.ErrorIs(t, err, ErrCycle)
}

func TestRecordTypeTagDistinguishesSameFields(t *testing.T) {
	a := &Record{TypeModule: "pkg", TypeName: "A", Fields: Map{{Key: Str("x"), Value: Int(1)}}}
	b := &Record{TypeModule: "pkg", TypeName: "B", Fields: Map{{Key: Str("x"), Value: Int(1)}}}

	da, err := Compute(a)
	require.NoError(t, err)
	db, err := Compute(b)
	require.NoError(t, err)
	require.NotEqual(t, da, db)
}

func TestSumAndSubtractAreInverses(t *testing.T) {
	da := MustCompute(Str("a"))
	db := MustCompute(Str("b"))

	total := Sum(da, db)
	back := Subtract(total, db)
	require.Equal(t, da, back)
}

func TestFloatStableForEqualValues(t *testing.T) {
	d1, err := Compute(Float(1.5))
	require.NoError(t, err)
	d2, err := Compute(Float(1.5))
	require.NoError(t, err)
	require.Equal(t, d1, d2)
}

func TestFloatDistinguishesNearbyValues(t *testing.T) {
	// A fixed-point scheme scaled by 1e9 would collide these two; the
	// exact IEEE-754 bit pattern must not.
	d1, err := Compute(Float(1.0))
	require.NoError(t, err)
	d2, err := Compute(Float(1.0 + 1e-10))
	require.NoError(t, err)
	require.NotEqual(t, d1, d2)
}

func TestFloatHandlesLargeMagnitudes(t *testing.T) {
	// float64->int64 conversion is implementation-defined for magnitudes
	// beyond int64's range; the bit-pattern encoding has no such limit.
	d1, err := Compute(Float(1e300))
	require.NoError(t, err)
	d2, err := Compute(Float(1e300))
	require.NoError(t, err)
	require.Equal(t, d1, d2)

	d3, err := Compute(Float(-1e300))
	require.NoError(t, err)
	require.NotEqual(t, d1, d3)
}

func TestLiteralCacheHitMatchesMiss(t *testing.T) {
	// The first Compute populates literalCache; the second hits it. Both
	// must produce the same digest regardless of cache warmth.
	dMiss, err := Compute(Bytes("cached-literal-value"))
	require.NoError(t, err)
	dHit, err := Compute(Bytes("cached-literal-value"))
	require.NoError(t, err)
	require.Equal(t, dMiss, dHit)

	// And it must still agree with an equivalent value embedded in a
	// larger structure, not just a bare top-level Compute call.
	dNested, err := Compute(Seq{Bytes("cached-literal-value")})
	require.NoError(t, err)
	dBare, err := Compute(Bytes("cached-literal-value"))
	require.NoError(t, err)
	require.NotEqual(t, dNested, dBare) // Seq wrapping changes the structure, just not the literal's own encoding
}
