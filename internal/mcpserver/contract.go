package mcpserver

// CollectionFormatContract describes the on-disk collection format that LLM
// consumers should follow when creating or updating records.
const CollectionFormatContract = `# jsondb Collection Format Contract

Every record kind is stored in one collection file in the data directory.

## Structure

` + "```" + `json
[
  {
    "id": 1,
    "name": "Widget",
    "price": 9.5,
    "addedOn": "2024-01-02T03:04:05Z"
  },
  {
    "id": 2,
    "name": "Gadget"
  }
]
` + "```" + `

## Rules

1. **One file per kind.** A kind ` + "`" + `Product` + "`" + ` lives in ` + "`" + `Product.json` + "`" + ` unless the
   server registers another file name for it.
2. **The document is a JSON array.** An empty, blank or ` + "`" + `null` + "`" + ` file is read as an
   empty collection. Anything else that is not an array of objects is corrupt and
   is never overwritten.
3. **Every record has an integer ` + "`" + `id` + "`" + `.** Saving a record whose id is already
   present replaces it in place. Otherwise the record is appended.
4. **Ids are not unique on disk.** Files edited by hand may hold duplicates. Lookups
   return the first match and deletes remove every match.
5. **Property names are camelCase.** The first letter is lowercase, and a leading
   acronym is lowercased as a whole (` + "`" + `URLPath` + "`" + ` becomes ` + "`" + `urlPath` + "`" + `).
6. **Times** are RFC 3339 strings in UTC.
7. **Encoding** is UTF-8, indented with two spaces. A leading byte order mark is
   tolerated on read.

## Tools

- ` + "`" + `list_collections` + "`" + ` lists every collection file with its record count.
- ` + "`" + `get_records` + "`" + ` and ` + "`" + `get_record` + "`" + ` read records.
- ` + "`" + `save_record` + "`" + ` accepts a JSON object or a JSON array of objects. An array is
  written with a single file write.
- ` + "`" + `delete_record` + "`" + ` removes every record with an id.
`
