// Package search answers natural-language queries over the indexed atom
// corpus. A query is embedded with the same model used at indexing time and
// matched against stored vectors by cosine similarity; metadata filters are
// applied before ranking so the result limit is spent on eligible atoms only.
package search
