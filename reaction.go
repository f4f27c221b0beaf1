package rdmesim

// ReactionNetwork holds the sparse stoichiometry matrix, the reactant-index
// table, and the per-reaction rate vector. Reactions are global
// (region-independent); per-region gating is achieved by restricting
// species to the region they were seeded into.
type ReactionNetwork struct {
	lattice      *Lattice
	stoich       [][]int32 // one row per reaction, width S+1
	reactantIdx  [][3]int32
	rates        []float32
}

// NewReactionNetwork binds a ReactionNetwork to the Lattice whose species
// table it resolves names against.
func NewReactionNetwork(lattice *Lattice) *ReactionNetwork {
	return &ReactionNetwork{lattice: lattice}
}

// AddReaction resolves reactant/product names to species ids, appends a
// stoichiometry row (−1 per reactant, +1 per product, net balance for
// species on both sides), a reactant-index row left-padded with zeros to
// width 3, and a rate. Fails with Arity for more than three reactants, with
// UnknownSpecies for any undeclared name, and refuses once MaxReactions
// rows are present.
func (rn *ReactionNetwork) AddReaction(reactants, products []string, rate float32) error {
	if len(reactants) > 3 {
		return newErr(Arity, "reaction has %d reactants, max 3", len(reactants))
	}
	if len(rn.rates) >= MaxReactions {
		return newErr(ParseError, "reaction table at MaxReactions=%d", MaxReactions)
	}
	row := make([]int32, rn.lattice.NumSpecies())
	var idx [3]int32
	for i, name := range reactants {
		id, err := rn.lattice.SpeciesID(name)
		if err != nil {
			return err
		}
		row[id]--
		idx[3-len(reactants)+i] = int32(id)
	}
	for _, name := range products {
		id, err := rn.lattice.SpeciesID(name)
		if err != nil {
			return err
		}
		row[id]++
	}
	rn.stoich = append(rn.stoich, row)
	rn.reactantIdx = append(rn.reactantIdx, idx)
	rn.rates = append(rn.rates, rate)
	return nil
}

// NumReactions is the current reaction count.
func (rn *ReactionNetwork) NumReactions() int { return len(rn.rates) }

// StoichiometryRow returns the Δcount row for reaction j.
func (rn *ReactionNetwork) StoichiometryRow(j int) []int32 { return rn.stoich[j] }

// ReactantIndex returns the left-padded 3-wide reactant id row for reaction j.
func (rn *ReactionNetwork) ReactantIndex(j int) [3]int32 { return rn.reactantIdx[j] }

// Rate returns the rate constant for reaction j.
func (rn *ReactionNetwork) Rate(j int) float32 { return rn.rates[j] }

// FlattenStoichiometry returns the stoichiometry matrix row-major, width
// NumSpecies(), ready for device upload.
func (rn *ReactionNetwork) FlattenStoichiometry() []int32 {
	s := rn.lattice.NumSpecies()
	out := make([]int32, len(rn.stoich)*s)
	for j, row := range rn.stoich {
		copy(out[j*s:(j+1)*s], row)
	}
	return out
}

// FlattenReactantIndex returns the reactant-index table row-major, width 3.
func (rn *ReactionNetwork) FlattenReactantIndex() []int32 {
	out := make([]int32, len(rn.reactantIdx)*3)
	for j, row := range rn.reactantIdx {
		out[j*3], out[j*3+1], out[j*3+2] = row[0], row[1], row[2]
	}
	return out
}

// FlattenRates returns the rate vector ready for device upload.
func (rn *ReactionNetwork) FlattenRates() []float32 {
	out := make([]float32, len(rn.rates))
	copy(out, rn.rates)
	return out
}
