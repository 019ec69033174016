package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistryBuilds(t *testing.T) {
	reg, err := NewRegistry(DefaultDescriptors()...)
	require.NoError(t, err)
	assert.NotEmpty(t, reg.Primary())
	assert.NotEmpty(t, reg.Enrichment())
}

func TestClassify(t *testing.T) {
	reg := DefaultRegistry()

	tests := []struct {
		input   string
		name    string
		channel Channel
	}{
		{"jobTitle", "jobTitle", ChannelPrimary},
		{"Job Title", "jobTitle", ChannelPrimary},
		{"title", "jobTitle", ChannelPrimary},
		{"UPN", "userPrincipalName", ChannelPrimary},
		{"skills", "skills", ChannelEnrichment},
		{"About Me", "aboutMe", ChannelEnrichment},
		{"favouriteColour", "favouriteColour", ChannelUnrecognized},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			d := reg.Classify(tt.input)
			assert.Equal(t, tt.name, d.Name)
			assert.Equal(t, tt.channel, d.Channel)
		})
	}
}

func TestNewRegistryRejectsUnlabeledCollection(t *testing.T) {
	_, err := NewRegistry(AttributeDescriptor{
		Name:      "languages",
		ValueType: TypeArray,
		Channel:   ChannelEnrichment,
	})
	require.ErrorIs(t, err, ErrUnlabeledCollection)
}

func TestNewRegistryRejectsInvalidDescriptors(t *testing.T) {
	tests := []struct {
		name string
		desc AttributeDescriptor
		want error
	}{
		{"empty name", AttributeDescriptor{ValueType: TypeString, Channel: ChannelPrimary}, ErrInvalidDescriptor},
		{"unknown type", AttributeDescriptor{Name: "a", ValueType: "blob", Channel: ChannelPrimary}, ErrInvalidDescriptor},
		{"unknown channel", AttributeDescriptor{Name: "a", ValueType: TypeString, Channel: "side"}, ErrInvalidDescriptor},
		{"label on primary", AttributeDescriptor{Name: "a", ValueType: TypeString, Channel: ChannelPrimary, ExternalLabel: LabelNote}, ErrInvalidDescriptor},
		{"unknown label", AttributeDescriptor{Name: "a", ValueType: TypeArray, Channel: ChannelEnrichment, ExternalLabel: "personShoeSize"}, ErrInvalidDescriptor},
		{"reserved label", AttributeDescriptor{Name: "a", ValueType: TypeString, Channel: ChannelEnrichment, ExternalLabel: LabelAccount}, ErrInvalidDescriptor},
		{"reserved name", AttributeDescriptor{Name: AccountsProperty, ValueType: TypeString, Channel: ChannelEnrichment}, ErrInvalidDescriptor},
		{"unlabeled bool", AttributeDescriptor{Name: "a", ValueType: TypeBool, Channel: ChannelEnrichment}, ErrInvalidDescriptor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.desc)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(
		AttributeDescriptor{Name: "jobTitle", ValueType: TypeString, Channel: ChannelPrimary},
		AttributeDescriptor{Name: "job_title", ValueType: TypeString, Channel: ChannelPrimary},
	)
	require.ErrorIs(t, err, ErrDuplicateAttribute)

	_, err = NewRegistry(
		AttributeDescriptor{Name: "jobTitle", ValueType: TypeString, Channel: ChannelPrimary, Aliases: []string{"role"}},
		AttributeDescriptor{Name: "role", ValueType: TypeString, Channel: ChannelPrimary},
	)
	require.ErrorIs(t, err, ErrDuplicateAttribute)
}

func TestResolveHeaders(t *testing.T) {
	reg := DefaultRegistry()

	mapped, shadowed := reg.ResolveHeaders([]string{"UPN", "Title", "Job Title", "Shoe Size"})
	assert.Equal(t, "userPrincipalName", mapped["UPN"])
	assert.Equal(t, "jobTitle", mapped["Title"])
	assert.Equal(t, "Shoe Size", mapped["Shoe Size"])
	assert.NotContains(t, mapped, "Job Title")
	assert.Equal(t, []string{"Job Title"}, shadowed)
}

func TestSuggest(t *testing.T) {
	reg := DefaultRegistry()
	assert.Equal(t, "department", reg.Suggest("departmnet"))
	assert.Equal(t, "certifications", reg.Suggest("certificatons"))
	assert.Equal(t, "", reg.Suggest("zzzzzz"))
}

func TestRemoteRecordLookup(t *testing.T) {
	rec := &RemoteRecord{Attributes: map[string]any{
		"jobTitle":        "CEO",
		"employeeOrgData": map[string]any{"costCenter": "CC-1"},
	}}

	v, ok := rec.Lookup("jobTitle")
	require.True(t, ok)
	assert.Equal(t, "CEO", v)

	v, ok = rec.Lookup("employeeOrgData.costCenter")
	require.True(t, ok)
	assert.Equal(t, "CC-1", v)

	_, ok = rec.Lookup("employeeOrgData.division")
	assert.False(t, ok)
	_, ok = rec.Lookup("jobTitle.sub")
	assert.False(t, ok)
}

func TestExtensionsYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.yaml")
	content := `
version: 1
attributes:
  - name: badgeNumber
    channel: primary
    remote_name: onPremisesExtensionAttributes.extensionAttribute1
    aliases: [badge]
  - name: languages
    type: array
    channel: enrichment
    label: personSkills
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	ext, err := LoadExtensionsYAML(path)
	require.NoError(t, err)
	require.Len(t, ext.Attributes, 2)
	assert.Equal(t, TypeString, ext.Attributes[0].ValueType)

	reg, err := BuildRegistry(ext)
	require.NoError(t, err)
	d := reg.Classify("Badge")
	assert.Equal(t, "badgeNumber", d.Name)
	assert.Equal(t, "onPremisesExtensionAttributes.extensionAttribute1", d.RemotePath())
}

func TestExtensionsYAMLRejectsUnlabeledCollection(t *testing.T) {
	ext, err := ParseExtensionsYAML([]byte(`
version: 1
attributes:
  - name: languages
    type: array
    channel: enrichment
`))
	require.NoError(t, err)
	_, err = BuildRegistry(ext)
	require.ErrorIs(t, err, ErrUnlabeledCollection)
}

func TestExtensionsYAMLVersion(t *testing.T) {
	_, err := ParseExtensionsYAML([]byte("version: 2\n"))
	require.Error(t, err)
}
