package rdmesim

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// sceneDoc mirrors the exhaustive JSON scene schema of spec §6 one field at
// a time. Callers decode with plain json.Unmarshal, so unknown keys are
// ignored rather than rejected.
// Grounded on the teacher's mod_presets.go stdlib-json pattern and on
// original_source/examples/json_app.rs's Simulation::from_file schema.
type sceneDoc struct {
	Parameters struct {
		Dimensions        [3]float32 `json:"dimensions"`
		LatticeResolution [3]int     `json:"lattice_resolution"`
		Tau               float32    `json:"tau"`
		Lambda            float32    `json:"lambda"`
	} `json:"parameters"`
	Regions   []sceneRegion      `json:"regions"`
	Particles []sceneParticle    `json:"particles"`
	Reactions map[string]float32 `json:"reactions"`
}

type sceneRegion struct {
	Name             string     `json:"name"`
	Type             string     `json:"type"`
	P0               [3]float32 `json:"p0"`
	Pf               [3]float32 `json:"pf"`
	Center           [3]float32 `json:"center"`
	Radius           float32    `json:"radius"`
	Dir              [3]float32 `json:"dir"`
	Inner            float32    `json:"inner"`
	Outer            float32    `json:"outer"`
	TotalLength      float32    `json:"total_length"`
	MaxVolume        int        `json:"max_volume"`
	Parent           string     `json:"parent"`
	BaseDiffusionRate float32   `json:"base_diffusion_rate"`
}

type sceneParticle struct {
	Name          string             `json:"name"`
	ToRegion      string             `json:"to_region"`
	Logging       bool               `json:"logging"`
	IsReservoir   bool               `json:"is_reservoir"`
	Count         *uint32            `json:"count"`
	Concentration *float32           `json:"concentration"`
	DiffusionRate map[string]float32 `json:"diffusion_rate"`
}

// LoadScene parses a scene JSON document from path and builds a
// fully-seeded Simulation from it, implementing the schema enumerated in
// spec §6. Parse failures return ParseError, filesystem failures IoError;
// building the simulation from a parsed document can also return the
// builder's own kinds (UnknownRegion, UnknownSpecies, RegionSaturated, ...).
func LoadScene(path string, seed int64) (*Simulation, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, newErr(IoError, "reading scene %q: %v", path, err)
	}
	var doc sceneDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, newErr(ParseError, "parsing scene %q: %v", path, err)
	}
	return buildFromScene(&doc, seed)
}

// ValidateScene parses and type-checks a scene document without building a
// Simulation (no GPU device required), per cmd/rdmesim's `validate`
// subcommand.
func ValidateScene(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return newErr(IoError, "reading scene %q: %v", path, err)
	}
	var doc sceneDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return newErr(ParseError, "parsing scene %q: %v", path, err)
	}
	for d, r := range doc.Parameters.LatticeResolution {
		if r <= 0 {
			return newErr(ParseError, "lattice_resolution axis %d must be positive", d)
		}
	}
	for _, r := range doc.Regions {
		if !validRegionType(r.Type) {
			return newErr(ParseError, "region %q has unknown type %q", r.Name, r.Type)
		}
	}
	for _, p := range doc.Particles {
		if p.Count == nil && p.Concentration == nil {
			return newErr(ParseError, "particle %q needs count or concentration", p.Name)
		}
	}
	for expr := range doc.Reactions {
		if _, _, _, err := parseReactionExpr(expr); err != nil {
			return err
		}
	}
	return nil
}

func validRegionType(t string) bool {
	switch t {
	case "cube", "sphere", "semisphere", "cylinder", "spherical_shell", "cylindrical_shell", "capsid", "sparse":
		return true
	default:
		return false
	}
}

func buildFromScene(doc *sceneDoc, seed int64) (*Simulation, error) {
	dims := mgl32.Vec3{doc.Parameters.Dimensions[0], doc.Parameters.Dimensions[1], doc.Parameters.Dimensions[2]}
	params, err := NewLatticeParameters(dims, doc.Parameters.LatticeResolution, doc.Parameters.Tau, doc.Parameters.Lambda)
	if err != nil {
		return nil, err
	}

	var logged []string
	for _, p := range doc.Particles {
		if p.Logging {
			logged = append(logged, p.Name)
		}
	}

	sim := NewSimulation(SimulationConfig{Params: params, Seed: seed, WriteFreq: 0, LoggedSpecies: logged})

	for _, r := range doc.Regions {
		if err := addSceneRegion(sim, r); err != nil {
			return nil, err
		}
	}
	sim.PrepareRegions()

	for _, name := range allSpeciesNames(doc.Particles) {
		sim.DeclareSpecies(name)
	}

	for _, p := range doc.Particles {
		if err := seedSceneParticle(sim, p); err != nil {
			return nil, err
		}
		for region, rate := range p.DiffusionRate {
			if err := sim.SetDiffusionRate(region, region, p.Name, rate); err != nil {
				return nil, err
			}
		}
	}

	for expr, rate := range doc.Reactions {
		reactants, products, multiplier, err := parseReactionExpr(expr)
		if err != nil {
			return nil, err
		}
		if err := sim.AddReaction(reactants, products, rate*multiplier); err != nil {
			return nil, err
		}
	}

	return sim, nil
}

func allSpeciesNames(particles []sceneParticle) []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range particles {
		if !seen[p.Name] {
			seen[p.Name] = true
			out = append(out, p.Name)
		}
	}
	return out
}

func addSceneRegion(sim *Simulation, r sceneRegion) error {
	toVec := func(a [3]float32) mgl32.Vec3 { return mgl32.Vec3{a[0], a[1], a[2]} }
	switch r.Type {
	case "cube":
		_, err := sim.AddRegion(r.Name, RegionDescriptor{Kind: RegionCube, P0: toVec(r.P0), Pf: toVec(r.Pf)}, r.BaseDiffusionRate)
		return err
	case "sphere":
		_, err := sim.AddRegion(r.Name, RegionDescriptor{Kind: RegionSphere, Center: toVec(r.Center), Radius: r.Radius}, r.BaseDiffusionRate)
		return err
	case "semisphere":
		_, err := sim.AddRegion(r.Name, RegionDescriptor{Kind: RegionSemiSphere, Center: toVec(r.Center), Dir: toVec(r.Dir), Radius: r.Radius}, r.BaseDiffusionRate)
		return err
	case "cylinder":
		_, err := sim.AddRegion(r.Name, RegionDescriptor{Kind: RegionCylinder, P0: toVec(r.P0), Pf: toVec(r.Pf), Radius: r.Radius}, r.BaseDiffusionRate)
		return err
	case "spherical_shell":
		_, err := sim.AddRegion(r.Name, RegionDescriptor{Kind: RegionSphericalShell, Center: toVec(r.Center), Inner: r.Inner, Outer: r.Outer}, r.BaseDiffusionRate)
		return err
	case "cylindrical_shell":
		_, err := sim.AddRegion(r.Name, RegionDescriptor{Kind: RegionCylindricalShell, P0: toVec(r.P0), Pf: toVec(r.Pf), Inner: r.Inner, Outer: r.Outer}, r.BaseDiffusionRate)
		return err
	case "capsid":
		_, _, err := sim.AddCapsid(r.Name, RegionDescriptor{Center: toVec(r.Center), Dir: toVec(r.Dir), Inner: r.Inner, Outer: r.Outer, TotalLength: r.TotalLength}, r.BaseDiffusionRate)
		return err
	case "sparse":
		_, err := sim.AddSparseRegion(r.Name, r.Parent, r.Radius, r.MaxVolume, r.BaseDiffusionRate)
		return err
	default:
		return newErr(ParseError, "region %q has unknown type %q", r.Name, r.Type)
	}
}

func seedSceneParticle(sim *Simulation, p sceneParticle) error {
	sim.DeclareSpecies(p.Name)
	if p.IsReservoir {
		return sim.SeedReservoir(p.ToRegion, p.Name)
	}
	if p.Count != nil {
		return sim.SeedCount(p.ToRegion, p.Name, int(*p.Count))
	}
	if p.Concentration != nil {
		return sim.SeedConcentration(p.ToRegion, p.Name, *p.Concentration)
	}
	return newErr(ParseError, "particle %q needs count or concentration", p.Name)
}

// parseReactionExpr splits a "2 A + B -> C" style key into reactant and
// product species names plus the combined rate multiplier contributed by
// any leading numeric token found on either side, per spec §6: "a leading
// numeric token multiplies the rate". "2 A -> B" with a declared rate of 1.5
// must register at rate 3.0, not 1.5.
func parseReactionExpr(expr string) (reactants, products []string, multiplier float32, err error) {
	sides := strings.SplitN(expr, "->", 2)
	if len(sides) != 2 {
		return nil, nil, 0, newErr(ParseError, "reaction %q missing '->'", expr)
	}
	multiplier = 1
	parseSide := func(s string) []string {
		var out []string
		for _, tok := range strings.Split(s, "+") {
			fields := strings.Fields(tok)
			if len(fields) == 0 {
				continue
			}
			if n, numErr := strconv.ParseFloat(fields[0], 64); numErr == nil {
				multiplier *= float32(n)
				fields = fields[1:]
				if len(fields) == 0 {
					continue
				}
			}
			out = append(out, strings.Join(fields, " "))
		}
		return out
	}
	reactants = parseSide(sides[0])
	products = parseSide(sides[1])
	if len(reactants) == 0 && len(products) == 0 {
		return nil, nil, 0, newErr(ParseError, "reaction %q has no species", expr)
	}
	return reactants, products, multiplier, nil
}
