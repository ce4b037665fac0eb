package collector

import "strings"

// Category is a product page with its ordered subtopic pages.
type Category struct {
	Name      string
	Subtopics []string
}

// AccountStructure is the product hierarchy scraped by default.
var AccountStructure = []Category{
	{Name: "Savings Account", Subtopics: []string{
		"Advantage Account",
		"Advantage Plus Account",
		"Advantage DIVA Account",
		"Advantage Superior Senior Citizen Account",
		"Advantage Prime Account",
		"Advantage Kids Account",
		"Advantage Bonanza Account",
		"Savings Account Using Video KYC",
		"Small Account - Relaxed KYC",
		"Basic Savings Account - Complete KYC",
		"Pension Savings Account (Central Govt. Emp)",
		"Capital Gain Account Scheme",
	}},
	{Name: "Fixed Deposit Account", Subtopics: []string{
		"Suvidha Fixed Deposit",
		"Suvidha Tax Saving Fixed Deposit",
		"Systematic Savings Plan (SSP/SSP Plus)",
		"Floating Rate Term Deposit",
		"Vasundhara Green Deposit",
	}},
	{Name: "Salary Accounts", Subtopics: []string{
		"Salary Account Overview",
		"Platinum Salary Account",
		"Gold Salary Account",
		"Silver Salary Account",
		"Bronze Salary Account",
		"Pride Salary Account",
		"Indian Army Salary Account",
		"Indian Navy Salary Account",
	}},
	{Name: "Current Account", Subtopics: []string{
		"Elite Plus Business Account",
		"Umang Business Account",
		"Unnati Business Account",
		"Gram Unnati Business Account",
		"eMerchant Current Account",
	}},
	{Name: "Kutumb Family Banking"},
}

// Topic identifies one page. Name is empty for a category page.
type Topic struct {
	Category string
	Name     string
}

func (t Topic) IsCategory() bool { return t.Name == "" }

// Title is the human readable page name.
func (t Topic) Title() string {
	if t.IsCategory() {
		return t.Category
	}
	return t.Name
}

// FileName is <category>.txt for a category page and <category>_<sub>.txt otherwise.
func (t Topic) FileName() string {
	if t.IsCategory() {
		return CleanName(t.Category) + ".txt"
	}
	return CleanName(t.Category) + "_" + CleanName(t.Name) + ".txt"
}

// URL joins base with the lowercased clean page name.
func (t Topic) URL(base string) string {
	return base + strings.ToLower(CleanName(t.Title())) + ".aspx"
}

var nameReplacer = strings.NewReplacer(" ", "_", "/", "_", "-", "_", "(", "", ")", "")

func CleanName(name string) string {
	return nameReplacer.Replace(name)
}

// Topics flattens a hierarchy: each category followed by its subtopics.
func Topics(structure []Category) []Topic {
	var out []Topic
	for _, c := range structure {
		out = append(out, Topic{Category: c.Name})
		for _, sub := range c.Subtopics {
			out = append(out, Topic{Category: c.Name, Name: sub})
		}
	}
	return out
}
