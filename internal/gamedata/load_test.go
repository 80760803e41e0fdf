package gamedata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaocai218/cultivation-world-simulator/internal/cultivation"
)

var testTables = map[string]string{
	"sects.csv": `id,name,description
azure_cloud,Azure Cloud Sect,Sword cultivators of the eastern peaks
crimson_flame,Crimson Flame Sect,Fire-path alchemists`,
	"personas.csv": `id,name,description
prideful,Prideful,Looks down on weaker cultivators
cautious,Cautious,Avoids fights they cannot win`,
	"techniques.csv": `id,name,realm,exp_factor,description
breath_of_mist,Breath of Mist,QI_REFINEMENT,1.0,Entry-level breathing method
jade_furnace,Jade Furnace Canon,FOUNDATION_ESTABLISHMENT,1.3,Refines qi through inner heat`,
	"weapons.csv": `id,name,realm,attack,description
iron_sword,Iron Sword,QI_REFINEMENT,10,A plain blade
flying_blade,Flying Blade,FOUNDATION_ESTABLISHMENT,35,Responds to sword intent`,
	"auxiliaries.csv": `id,name,realm,defense,cultivation_factor,description
cloud_robe,Cloud Robe,QI_REFINEMENT,5,1.1,Woven from mist silk`,
	"elixirs.csv": `id,name,realm,kind,amount,description
qi_pill,Qi Gathering Pill,QI_REFINEMENT,exp,50,Condensed spiritual energy
healing_dew,Healing Dew,QI_REFINEMENT,heal,40,Closes wounds overnight`,
	"fortunes.csv": `id,kind,weight,text
cave_stash,spirit_stones,2.0,{name} found a hidden stash of spirit stones
sudden_insight,insight,1.0,{name} grasped a sudden insight`,
	"misfortunes.csv": `id,kind,weight,text
robbed,stone_loss,1.5,{name} was robbed on the road
qi_deviation,backlash,1.0,{name} suffered qi deviation`,
	"phenomena.csv": `key,name,months,cultivation_factor,breakthrough_bonus,weight,description
spirit_tide,Spirit Tide,6,1.3,0.1,2.0,Spiritual energy surges worldwide
blood_moon,Blood Moon,3,0.8,0.0,1.0,An ill omen dims cultivation`,
	"names.csv": `kind,value
surname,Li
surname,Mo
male,Feng
female,Qing`,
	"regions.csv": `kind,name
city,Jade River City
wild,Blackwood Expanse
cultivate_spot,Moonwell Grotto`,
}

func writeLanguage(t *testing.T, dir, lang string) {
	t.Helper()
	root := filepath.Join(dir, lang)
	require.NoError(t, os.MkdirAll(root, 0o755))
	for name, content := range testTables {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(content+"\n"), 0o644))
	}
}

func TestLoadBundle(t *testing.T) {
	dir := t.TempDir()
	writeLanguage(t, dir, "en-US")

	b, err := Load(dir, "en-US")
	require.NoError(t, err)

	s, ok := b.SectByID("azure_cloud")
	require.True(t, ok)
	assert.Equal(t, "Azure Cloud Sect", s.Name)

	tech := b.TechniquesForRealm(cultivation.FoundationEstablishment)
	require.Len(t, tech, 1)
	assert.Equal(t, 1.3, tech[0].ExpFactor)

	e, ok := b.ElixirByID("qi_pill")
	require.True(t, ok)
	assert.Equal(t, ElixirExp, e.Kind)
	assert.Equal(t, 50, e.Amount)

	assert.Len(t, b.Phenomena, 2)
	assert.Equal(t, []string{"Jade River City"}, b.RegionNames["city"])
}

func TestLoadRejectsBadRows(t *testing.T) {
	dir := t.TempDir()
	writeLanguage(t, dir, "en-US")
	bad := filepath.Join(dir, "en-US", "weapons.csv")
	require.NoError(t, os.WriteFile(bad, []byte("id,name,realm,attack,description\nx,X,QI_REFINEMENT,lots,desc\n"), 0o644))

	_, err := Load(dir, "en-US")
	assert.Error(t, err)
}

func TestSwitchLanguageKeepsOldBundleOnFailure(t *testing.T) {
	dir := t.TempDir()
	writeLanguage(t, dir, "en-US")

	store, err := NewStore(dir, "en-US")
	require.NoError(t, err)

	// zh-CN is missing entirely; the live bundle must survive.
	require.Error(t, store.SwitchLanguage("zh-CN"))
	assert.Equal(t, "en-US", store.Bundle().Language)

	writeLanguage(t, dir, "zh-CN")
	require.NoError(t, store.SwitchLanguage("zh-CN"))
	assert.Equal(t, "zh-CN", store.Bundle().Language)
}
