// CLAUDE:SUMMARY Built-in source definitions for the public climate policy catalogs the dataset is built from.
// Package catalog holds the declarative definitions of every catalog
// site the dataset is collected from. Selectors and pagination defaults
// mirror the live sites; when a site redesigns, this file is the only
// place that needs to change.
package catalog

import (
	"fmt"

	"github.com/vanessagd15/GCCMPD-climate-policy-dataset/crawl"
	"github.com/vanessagd15/GCCMPD-climate-policy-dataset/crawl/internal/fields"
	"github.com/vanessagd15/GCCMPD-climate-policy-dataset/crawl/internal/listing"
	"github.com/vanessagd15/GCCMPD-climate-policy-dataset/crawl/internal/paginate"
)

// Sources returns every crawlable source definition, in the order a
// full collection run visits them.
func Sources() []crawl.Source {
	return []crawl.Source{
		IEA(),
		APEP(),
		ECOLEXLegislation(),
		ECOLEXTreaty(),
		MEEPRC(),
		GOVPRC(),
		CDRNETS(),
		CRT(),
		ICAPETS(),
	}
}

// Names returns the catalog's source names, in run order.
func Names() []string {
	srcs := Sources()
	names := make([]string, len(srcs))
	for i, s := range srcs {
		names[i] = s.Name
	}
	return names
}

// ByName resolves a source definition by its name.
func ByName(name string) (crawl.Source, error) {
	for _, s := range Sources() {
		if s.Name == name {
			return s, nil
		}
	}
	return crawl.Source{}, fmt.Errorf("%w: %q", crawl.ErrUnknownSource, name)
}

// IEA is the International Energy Agency policies database. The listing
// embeds country, year, status, and jurisdiction; taxonomies and the
// summary come from the detail page.
func IEA() crawl.Source {
	return crawl.Source{
		Name:       "IEA",
		OutputFile: "IEA_all_policy.csv",
		Columns: []string{"Policy", "Country", "Year", "Status", "Jurisdiction",
			"policy_url", "Topics", "Type", "Sectors", "Technologies",
			"LearnMore", "Policy_Content", "Source"},
		URLColumn: "policy_url",
		Constants: map[string]string{"Source": "IEA"},
		Listings: []crawl.ListingRoot{{
			URLTemplate:  "https://www.iea.org/policies?page={page}",
			FirstPageURL: "https://www.iea.org/policies",
			StartPage:    1,
		}},
		Paginate: paginate.Config{
			Heuristics: []paginate.Heuristic{
				{Kind: paginate.KindTotalCount, Selector: "span.m-filter-bar__count", PageSize: 30},
			},
			Default: 1,
		},
		Listing: listing.Config{
			ItemSelector: "ul.m-policy-listing-items li",
			LinkSelector: "a.m-policy-listing-item__link",
			BaseURL:      "https://www.iea.org",
			Fields: map[string]string{
				"Policy":       "a.m-policy-listing-item__link",
				"Country":      "div.m-policy-listing-item-row__content span:nth-child(1)",
				"Year":         "div.m-policy-listing-item-row__content span:nth-child(2)",
				"Status":       "div.m-policy-listing-item-row__content span:nth-child(3)",
				"Jurisdiction": "div.m-policy-listing-item-row__content span:nth-child(4)",
			},
		},
		Schema: fields.Schema{
			Fields: []fields.Field{
				{Name: "Topics", Rules: []fields.Rule{
					{Selector: "span", Contains: "Topics", Next: "ul", Find: "li a span:first-child", Join: ";"},
				}},
				{Name: "Type", Rules: []fields.Rule{
					{Selector: "span", Contains: "Policy types", Next: "ul", Find: "li a span:first-child", Join: ";"},
				}},
				{Name: "Sectors", Rules: []fields.Rule{
					{Selector: "span", Contains: "Sectors", Next: "ul", Find: "li a span:first-child", Join: ";"},
				}},
				{Name: "Technologies", Rules: []fields.Rule{
					{Selector: "span", Contains: "Technologies", Next: "ul", Find: "li a span:first-child", Join: ";"},
				}},
				{Name: "LearnMore", Rules: []fields.Rule{
					{Selector: "a", Contains: "Learn more", Attr: "href"},
				}},
				{Name: "Policy_Content", Rules: []fields.Rule{
					{Selector: "div.m-block__content p", Join: " ", MaxLen: 5000},
					{Selector: "div.m-block__content", MaxLen: 5000},
				}},
			},
		},
	}
}

// APEP is the Asia Pacific Energy Policy portal. Detail pages title as
// "Country: Policy" and keep their metadata in labelled panel rows.
func APEP() crawl.Source {
	return crawl.Source{
		Name:       "APEP",
		OutputFile: "APEP.csv",
		Columns: []string{"Policy", "Year", "Country", "Policy_Content", "single_url_2",
			"Scope", "Document_Type", "Economic_Sector", "Energy_Types", "Source"},
		URLColumn: "single_url_2",
		Constants: map[string]string{"Source": "APEP"},
		Listings: []crawl.ListingRoot{{
			URLTemplate:  "https://policy.asiapacificenergy.org/node?page={page}",
			FirstPageURL: "https://policy.asiapacificenergy.org/node",
			StartPage:    0,
		}},
		Paginate: paginate.Config{
			Heuristics: []paginate.Heuristic{
				{Kind: paginate.KindLastLink, Selector: `a[title*="Go to last page"]`},
				{Kind: paginate.KindLastLink, Selector: "li.pager-last a"},
				{Kind: paginate.KindLastLink, Selector: "ul.pager a", Index: -1},
			},
			Default: 218,
		},
		Listing: listing.Config{
			ItemSelector: `a[rel="tag"]`,
			BaseURL:      "https://policy.asiapacificenergy.org",
		},
		Schema: fields.Schema{
			Fields: []fields.Field{
				{Name: "Policy", Rules: []fields.Rule{
					{Selector: "h2.page-header", Transform: fields.TransformAfterColon},
					{Selector: "h2.page-header"},
				}},
				{Name: "Country", Rules: []fields.Rule{
					{Selector: "h2.page-header", Transform: fields.TransformBeforeColon},
				}},
			},
			Labels: []fields.LabelBlock{{
				BlockSelector: "div#bootstrap-panel-body > div",
				LabelSelector: "div:first-child",
				ValueSelector: "div:nth-child(2) div",
				Vocabulary: map[string]string{
					"Effective Start Year": "Year",
					"Scope":                "Scope",
					"Document Type":        "Document_Type",
					"Economic Sector":      "Economic_Sector",
					"Energy Types":         "Energy_Types",
					"Overall Summary":      "Policy_Content",
				},
			}},
		},
	}
}

const ecolexSubjects = "xsubjects=Agricultural+%26+rural+development&xsubjects=Air+%26+atmosphere" +
	"&xsubjects=Energy&xsubjects=Environment+gen.&xsubjects=Forestry&xsubjects=General" +
	"&xsubjects=Land+%26+soil&xsubjects=Mineral+resources"

func ecolex(name, docType, outputFile, sourceTag string) crawl.Source {
	base := "https://www.ecolex.org/result/?type=" + docType + "&" + ecolexSubjects
	return crawl.Source{
		Name:       name,
		OutputFile: outputFile,
		Columns: []string{"Policy", "Year", "Country", "Policy_Content", "URL", "Subject",
			"Document_Type", "Keyword", "Geographical_area", "Entry into force notes", "Source"},
		URLColumn: "URL",
		Constants: map[string]string{"Source": sourceTag},
		Listings: []crawl.ListingRoot{{
			URLTemplate:  base + "&page={page}",
			FirstPageURL: base,
			StartPage:    1,
		}},
		Paginate: paginate.Config{
			Heuristics: []paginate.Heuristic{
				// The pager ends with a "next" arrow; the page count is the
				// button before it.
				{Kind: paginate.KindPagerText, Selector: "a.btn.btn-sm.btn-default", Index: -2},
			},
			Default: 100,
		},
		Listing: listing.Config{
			ItemSelector: "h3.search-result-title",
			LinkSelector: "a",
			BaseURL:      "https://www.ecolex.org",
		},
		Schema: fields.Schema{
			Fields: []fields.Field{
				{Name: "Policy", Rules: []fields.Rule{{Selector: "h1"}}},
				{Name: "Policy_Content", Rules: []fields.Rule{
					{Selector: "p.abstract", Join: " ", MaxLen: 5000},
					{Selector: "p.comment", Join: " ", MaxLen: 5000},
				}},
			},
			Labels: []fields.LabelBlock{
				{
					BlockSelector: "header dl",
					LabelSelector: "dt",
					ValueSelector: "dd",
					Pairs:         true,
					Vocabulary: map[string]string{
						"Country/Territory": "Country",
						"Document type":     "Document_Type",
						"Date":              "Year",
					},
				},
				{
					BlockSelector: "section#details dl",
					LabelSelector: "dt",
					ValueSelector: "dd",
					Pairs:         true,
					Vocabulary: map[string]string{
						"Subject":                "Subject",
						"Keyword":                "Keyword",
						"Geographical area":      "Geographical_area",
						"Entry into force notes": "Entry into force notes",
					},
				},
			},
			YearFrom: "Year",
		},
	}
}

// ECOLEXLegislation is the FAO/IUCN/UNEP legislation database, filtered
// to climate-adjacent subjects.
func ECOLEXLegislation() crawl.Source {
	return ecolex("ECOLEX_Legislation", "legislation", "ECOLEX_Legislation.csv", "ECOLEX")
}

// ECOLEXTreaty is the treaty half of the same database.
func ECOLEXTreaty() crawl.Source {
	return ecolex("ECOLEX_Treaty", "treaty", "ECOLEX_Treaty.csv", "ECOLEX_Treaty")
}

// meeCategories are the xxgk2018 directory numbers of the ministry's
// policy categories.
var meeCategories = []int{168, 169, 170, 174, 177, 178, 180, 182, 183, 184,
	185, 186, 187, 188, 189}

// MEEPRC is the PRC Ministry of Ecology and Environment disclosure
// listing. Each category is its own paginated index; the first page is
// unnumbered.
func MEEPRC() crawl.Source {
	roots := make([]crawl.ListingRoot, 0, len(meeCategories))
	for _, cat := range meeCategories {
		base := fmt.Sprintf("https://www.mee.gov.cn/xxgk2018/160/167/%d", cat)
		roots = append(roots, crawl.ListingRoot{
			URLTemplate:  base + "/index_6700_{page}.html",
			FirstPageURL: base + "/index_6700.html",
			StartPage:    0,
		})
	}
	return crawl.Source{
		Name:       "MEE_PRC",
		OutputFile: "MEE_PRC_policies.csv",
		Columns:    []string{"Policy", "Year", "Country", "Policy_Content", "URL", "Scope", "Source"},
		URLColumn:  "URL",
		Constants: map[string]string{
			"Country": "China",
			"Scope":   "National",
			"Source":  "MEE_PRC",
		},
		Listings: roots,
		// The indexes publish no page count; the empty-streak rule finds
		// the end of each category.
		Paginate: paginate.Config{Default: 200},
		Listing: listing.Config{
			ItemSelector: "div.iframe-list table tr",
			LinkSelector: "td a",
			StripPrefix:  "../../..",
			BaseURL:      "https://www.mee.gov.cn/xxgk2018",
			Fields: map[string]string{
				"Date": "td span",
			},
		},
		Schema: fields.Schema{
			Fields: []fields.Field{
				{Name: "Policy", Rules: []fields.Rule{
					{Selector: "li.first div p"},
					{Selector: "h2.neiright_Title"},
					{Selector: "title", Transform: fields.TransformBeforeDash},
				}},
				{Name: "Policy_Content", Rules: []fields.Rule{
					{Selector: "div#print_html", MaxLen: 10000},
					{Selector: "div.neiright_JPZ_GK_CP", MaxLen: 10000},
					{Selector: `div[class*="content"]`, MaxLen: 10000},
				}},
			},
			YearFrom: "Date",
		},
	}
}

// govCategories are the energy-sector theme filters of the State
// Council policy search, percent-encoded the way the API expects them.
var govCategories = []string{
	"国土资源、能源%5C矿产",
	"国土资源、能源%5C煤炭",
	"国土资源、能源%5C石油与天然气",
	"国土资源、能源%5C电力",
}

// GOVPRC is the State Council policy search API. Responses are JSONP;
// the listing carries title, date, and the detail URL.
func GOVPRC() crawl.Source {
	roots := make([]crawl.ListingRoot, 0, len(govCategories))
	for _, theme := range govCategories {
		roots = append(roots, crawl.ListingRoot{
			URLTemplate: "http://xxgk.www.gov.cn/search-zhengce/?callback=cb&mode=smart" +
				"&sort=relevant&page_index={page}&page_size=10&title=&theme=" + theme,
			StartPage: 1,
		})
	}
	return crawl.Source{
		Name:       "GOV_PRC",
		OutputFile: "GOV_PRC.csv",
		Columns:    []string{"Policy", "Year", "Country", "Policy_Content", "URL", "Scope", "Source"},
		URLColumn:  "URL",
		Constants: map[string]string{
			"Country": "China",
			"Scope":   "National",
			"Source":  "GOV_CHN",
		},
		Listings: roots,
		Paginate: paginate.Config{Default: 100},
		Listing: listing.Config{
			Mode:       listing.ModeJSONP,
			ResultPath: "data",
			URLField:   "url",
		},
		Schema: fields.Schema{
			Embedded: map[string]string{
				"Policy": "title",
				"Date":   "writetime",
			},
			Fields: []fields.Field{
				{Name: "Policy_Content", Rules: []fields.Rule{
					{Selector: "td.b12c", MaxLen: 10000},
				}},
			},
			YearFrom: "Date",
		},
	}
}

// CDRNETS is the carbon dioxide removal law database, filtered to
// negative emission technologies.
func CDRNETS() crawl.Source {
	base := "https://cdrlaw.org/technical-pathway/negative-emission-technologies/" +
		"?_cdr_res_type=pleg%2Cdec%2Cpop%2Cpol%2Celeg%2Cnew%2Chear"
	return crawl.Source{
		Name:       "CDR_NETS",
		OutputFile: "CDR_NETS.csv",
		Columns:    []string{"Policy", "Year", "Keyword", "Policy_Content", "URL", "Type", "Source"},
		URLColumn:  "URL",
		Constants:  map[string]string{"Source": "CDR_NETS"},
		Listings: []crawl.ListingRoot{{
			URLTemplate:  base + "&_paged={page}",
			FirstPageURL: base,
			StartPage:    1,
		}},
		Paginate: paginate.Config{
			Heuristics: []paginate.Heuristic{
				{Kind: paginate.KindLastAttr, Selector: "a.facetwp-page.last", Attr: "data-page"},
			},
			Default: 10,
		},
		Listing: listing.Config{
			ItemSelector: "article h2",
			LinkSelector: "a",
			BaseURL:      "https://cdrlaw.org",
		},
		Schema: fields.Schema{
			Fields: []fields.Field{
				{Name: "Policy", Rules: []fields.Rule{{Selector: "h1"}}},
				{Name: "Year", Rules: []fields.Rule{{Selector: "div.resource-year"}}},
				{Name: "Keyword", Rules: []fields.Rule{
					{Selector: "div.cdr_resource_keyword a", Join: ","},
				}},
				{Name: "Policy_Content", Rules: []fields.Rule{
					{Selector: "div.entry-content p", Join: " ", MaxLen: 5000},
				}},
				{Name: "Type", Rules: []fields.Rule{{Selector: "div.resource-type"}}},
			},
		},
	}
}

// CRT is the Columbia climate re-regulation tracker. The whole dataset
// ships as a JSON array inside an inline script on the landing page;
// detail pages only add the full text.
func CRT() crawl.Source {
	return crawl.Source{
		Name:       "CRT",
		OutputFile: "CRT.csv",
		Columns: []string{"Policy", "Year", "Country", "Policy_Content", "URL",
			"Scope", "Explanation", "Agency", "Source"},
		URLColumn: "URL",
		Constants: map[string]string{
			"Country": "USA",
			"Scope":   "National",
			"Source":  "Climate-Reregulation-Tracker",
		},
		Listings: []crawl.ListingRoot{{
			URLTemplate: "https://climate.law.columbia.edu/content/climate-reregulation-tracker",
			StartPage:   1,
		}},
		Paginate: paginate.Config{Default: 1},
		Listing: listing.Config{
			Mode:         listing.ModeScript,
			ScriptPrefix: "var services_data = ",
			ScriptSuffix: ";var services_dept_data",
			URLField:     "path",
			BaseURL:      "https://climate.law.columbia.edu",
			// The landing page ships two more tables next to the dataset;
			// records reference them by ID list.
			Lookups: []listing.Lookup{
				{Field: "Explanation", From: "departments_id",
					Prefix: "var services_dept_data = ", Suffix: ";var services_aud_data"},
				{Field: "Agency", From: "groups_id",
					Prefix: "var services_aud_data = ", Suffix: ";var services_cat_data"},
			},
		},
		Schema: fields.Schema{
			Embedded: map[string]string{
				"Policy":      "title",
				"Date":        "date",
				"Explanation": "Explanation",
				"Agency":      "Agency",
			},
			Fields: []fields.Field{
				{Name: "Policy_Content", Rules: []fields.Rule{
					{Selector: "div.field--name-field-cu-wysiwyg", MaxLen: 5000},
				}},
			},
			YearFrom: "Date",
		},
	}
}

// ICAPETS is the International Carbon Action Partnership ETS map. The
// map list is a JSON array of system IDs, each expanding to a detail
// page of labelled field divs.
func ICAPETS() crawl.Source {
	return crawl.Source{
		Name:       "ICAP_ETS",
		OutputFile: "ICAP_ETS.csv",
		Columns: []string{"Policy", "Year", "Country", "Policy_Content", "URL", "Scope",
			"Allocation", "Sectoral coverage", "GHGs covered", "Offsets credits", "Cap", "Source"},
		URLColumn: "URL",
		Constants: map[string]string{"Source": "ICAP"},
		Listings: []crawl.ListingRoot{{
			URLTemplate: "https://icapcarbonaction.com/en/json/maplist",
			StartPage:   1,
		}},
		Paginate: paginate.Config{Default: 1},
		Listing: listing.Config{
			Mode:        listing.ModeIDList,
			IDField:     "id",
			URLTemplate: "https://icapcarbonaction.com/en/ets_system/{id}",
		},
		Schema: fields.Schema{
			Fields: []fields.Field{
				{Name: "Policy", Rules: []fields.Rule{{Selector: "h1.ets-caption"}}},
				{Name: "Year", Rules: []fields.Rule{
					{Selector: "div.field-start-operation-year div", Index: 1},
				}},
				{Name: "Country", Rules: []fields.Rule{
					{Selector: "div.field-regions div.field__content"},
				}},
				{Name: "Policy_Content", Rules: []fields.Rule{
					{Selector: "div.field-summary-short div.dropdown-menu__frame", MaxLen: 5000},
				}},
				{Name: "Allocation", Rules: []fields.Rule{
					{Selector: "div.field-allowance-alloc-summary div", Index: 1},
				}},
				{Name: "Sectoral coverage", Rules: []fields.Rule{
					{Selector: "div.field-sectoral-coverage div.field-name div", Join: ";"},
				}},
				{Name: "GHGs covered", Rules: []fields.Rule{
					{Selector: "div.field-ghgs-covered div", Index: 1},
				}},
				{Name: "Offsets credits", Rules: []fields.Rule{
					{Selector: "div.field-offsets-credits-summary div", Index: 1},
				}},
				{Name: "Cap", Rules: []fields.Rule{
					{Selector: "div.field-cap-summary div", Index: 1},
				}},
			},
		},
	}
}
