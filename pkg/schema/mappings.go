package schema

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// IdentityAttribute is the attribute whose value becomes the principal key.
const IdentityAttribute = "userPrincipalName"

// defaultDescriptors is the built-in directory user table. Aliases cover the
// header spellings commonly exported by HR systems.
var defaultDescriptors = []AttributeDescriptor{
	// Identity
	{Name: "userPrincipalName", ValueType: TypeString, Channel: ChannelPrimary, MaxLength: 113,
		Aliases: []string{"upn", "principal_name", "login"}},
	{Name: "mail", ValueType: TypeString, Channel: ChannelPrimary, MaxLength: 256,
		Aliases: []string{"email", "emailaddress", "email_address"}},
	{Name: "mailNickname", ValueType: TypeString, Channel: ChannelPrimary, MaxLength: 64,
		Aliases: []string{"alias", "nickname"}},
	{Name: "employeeId", ValueType: TypeString, Channel: ChannelPrimary, MaxLength: 16,
		Aliases: []string{"employee_id", "emp_id", "personnelnumber"}},

	// Name
	{Name: "displayName", ValueType: TypeString, Channel: ChannelPrimary, MaxLength: 256,
		Aliases: []string{"display_name", "fullname", "full_name", "name", "cn"}},
	{Name: "givenName", ValueType: TypeString, Channel: ChannelPrimary, MaxLength: 64,
		Aliases: []string{"firstname", "first_name"}},
	{Name: "surname", ValueType: TypeString, Channel: ChannelPrimary, MaxLength: 64,
		Aliases: []string{"lastname", "last_name", "familyname"}},

	// Organization
	{Name: "jobTitle", ValueType: TypeString, Channel: ChannelPrimary, MaxLength: 128,
		Aliases: []string{"title", "job_title", "position"}},
	{Name: "department", ValueType: TypeString, Channel: ChannelPrimary, MaxLength: 64,
		Aliases: []string{"dept", "organizationalunit", "ou"}},
	{Name: "companyName", ValueType: TypeString, Channel: ChannelPrimary, MaxLength: 64,
		Aliases: []string{"company", "organization"}},
	{Name: "officeLocation", ValueType: TypeString, Channel: ChannelPrimary, MaxLength: 128,
		Aliases: []string{"office", "location"}},
	{Name: "employeeType", ValueType: TypeString, Channel: ChannelPrimary, MaxLength: 64,
		Aliases: []string{"worker_type", "employmenttype"}},
	{Name: "employeeHireDate", ValueType: TypeDate, Channel: ChannelPrimary,
		Aliases: []string{"hiredate", "hire_date", "startdate", "start_date"}},
	{Name: "employeeOrgData", ValueType: TypeObject, Channel: ChannelPrimary},
	{Name: "costCenter", ValueType: TypeString, Channel: ChannelPrimary, MaxLength: 64,
		RemoteName: "employeeOrgData.costCenter", Aliases: []string{"cost_center"}},
	{Name: "division", ValueType: TypeString, Channel: ChannelPrimary, MaxLength: 64,
		RemoteName: "employeeOrgData.division"},

	// Contact
	{Name: "businessPhones", ValueType: TypeArray, Channel: ChannelPrimary,
		Aliases: []string{"phone", "phones", "telephonenumber", "workphone"}},
	{Name: "mobilePhone", ValueType: TypeString, Channel: ChannelPrimary, MaxLength: 64,
		Aliases: []string{"mobile", "cellphone"}},
	{Name: "streetAddress", ValueType: TypeString, Channel: ChannelPrimary, MaxLength: 1024,
		Aliases: []string{"street", "address"}},
	{Name: "city", ValueType: TypeString, Channel: ChannelPrimary, MaxLength: 128},
	{Name: "state", ValueType: TypeString, Channel: ChannelPrimary, MaxLength: 128,
		Aliases: []string{"province", "region"}},
	{Name: "postalCode", ValueType: TypeString, Channel: ChannelPrimary, MaxLength: 40,
		Aliases: []string{"zip", "zipcode", "postcode"}},
	{Name: "country", ValueType: TypeString, Channel: ChannelPrimary, MaxLength: 128},
	{Name: "usageLocation", ValueType: TypeString, Channel: ChannelPrimary, MaxLength: 2},
	{Name: "preferredLanguage", ValueType: TypeString, Channel: ChannelPrimary, MaxLength: 16,
		Aliases: []string{"language", "locale"}},

	// Account
	{Name: "accountEnabled", ValueType: TypeBool, Channel: ChannelPrimary,
		Aliases: []string{"enabled", "active"}},
	{Name: "otherMails", ValueType: TypeArray, Channel: ChannelPrimary,
		Aliases: []string{"alternateemails", "other_mails"}},

	// Enrichment
	{Name: "skills", ValueType: TypeArray, Channel: ChannelEnrichment, ExternalLabel: LabelSkills,
		Aliases: []string{"expertise"}},
	{Name: "certifications", ValueType: TypeArray, Channel: ChannelEnrichment, ExternalLabel: LabelCertifications},
	{Name: "awards", ValueType: TypeArray, Channel: ChannelEnrichment, ExternalLabel: LabelAwards},
	{Name: "projects", ValueType: TypeArray, Channel: ChannelEnrichment, ExternalLabel: LabelProjects,
		Aliases: []string{"pastprojects"}},
	{Name: "interests", ValueType: TypeArray, Channel: ChannelEnrichment, ExternalLabel: LabelInterests,
		Aliases: []string{"hobbies"}},
	{Name: "aboutMe", ValueType: TypeString, Channel: ChannelEnrichment, ExternalLabel: LabelNote,
		Aliases: []string{"about", "bio", "biography"}},
	{Name: "website", ValueType: TypeString, Channel: ChannelEnrichment, ExternalLabel: LabelWebSite,
		Aliases: []string{"homepage", "url"}},
	{Name: "pronouns", ValueType: TypeString, Channel: ChannelEnrichment},
	{Name: "responsibilities", ValueType: TypeString, Channel: ChannelEnrichment},
	{Name: "schools", ValueType: TypeString, Channel: ChannelEnrichment,
		Aliases: []string{"education"}},
}

// DefaultDescriptors returns a copy of the built-in attribute table.
func DefaultDescriptors() []AttributeDescriptor {
	out := make([]AttributeDescriptor, len(defaultDescriptors))
	for i, d := range defaultDescriptors {
		d.Aliases = append([]string(nil), d.Aliases...)
		out[i] = d
	}
	return out
}

// DefaultRegistry builds a registry over DefaultDescriptors.
func DefaultRegistry() *Registry {
	return MustRegistry(DefaultDescriptors()...)
}

// ResolveHeaders maps each CSV header to its canonical attribute name.
// Headers that match nothing keep their original spelling and will classify
// as unrecognized. The first header to claim an attribute wins; later
// duplicates are reported in the second return value.
func (r *Registry) ResolveHeaders(headers []string) (map[string]string, []string) {
	result := make(map[string]string, len(headers))
	usedTargets := make(map[string]bool)
	var shadowed []string

	for _, header := range headers {
		d, ok := r.Lookup(header)
		if !ok {
			result[header] = header
			continue
		}
		if usedTargets[d.Name] {
			shadowed = append(shadowed, header)
			continue
		}
		usedTargets[d.Name] = true
		result[header] = d.Name
	}

	return result, shadowed
}

// normalizeHeader composes to NFC, lowercases, and strips whitespace,
// underscores, hyphens and dots.
func normalizeHeader(header string) string {
	s := strings.ToLower(strings.TrimSpace(norm.NFC.String(header)))
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "_", "")
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, ".", "")
	return s
}
