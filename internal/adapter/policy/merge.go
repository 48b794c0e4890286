package policy

import "github.com/guillermoBallester/stagecheck/internal/core/port"

// MergeTableDetail fills empty table and column comments from the policy.
// A COMMENT ON set in PostgreSQL always takes precedence.
func MergeTableDetail(detail *port.TableDetail, ctx ContextConfig) {
	if detail == nil {
		return
	}

	tc, ok := ctx.Tables[detail.Schema+"."+detail.Name]
	if !ok {
		return
	}

	if detail.Comment == "" {
		detail.Comment = tc.Description
	}
	for i, col := range detail.Columns {
		if cc, ok := tc.Columns[col.Name]; ok && col.Comment == "" {
			detail.Columns[i].Comment = cc.Description
		}
	}
}

// MergeTableInfoList applies the same precedence to a table listing.
func MergeTableInfoList(tables []port.TableInfo, ctx ContextConfig) {
	for i, t := range tables {
		if tc, ok := ctx.Tables[t.Schema+"."+t.Name]; ok && t.Comment == "" {
			tables[i].Comment = tc.Description
		}
	}
}
