package assembly

// expandPass turns every installed-database record into its own package.
// Entries of one database are never merged with each other.
func (a *Assembler) expandPass(records []dbRecord) []groupResult {
	return a.runGroups(len(records), func(i int) groupResult {
		r := records[i]
		g := singleRecord(r.record, r.config.PackageType)
		if g.pkg != nil {
			g.record, g.config = r.record, r.config
		}
		return g
	})
}
