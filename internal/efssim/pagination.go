package efssim

import "slices"

// defaultMaxItems is the page size EFS uses when MaxItems is not set.
const defaultMaxItems = 100

// paginate slices ids into one page. The marker is the id of the first item
// on the page; the returned next marker is the id of the first item on the
// following page, or "" on the last page.
func paginate(ids []string, marker string, maxItems int32) (page []string, next string, err error) {
	if maxItems < 0 {
		return nil, "", badRequest("MaxItems must be greater than 0.")
	}
	size := int(maxItems)
	if size == 0 {
		size = defaultMaxItems
	}

	start := 0
	if marker != "" {
		start = slices.Index(ids, marker)
		if start < 0 {
			return nil, "", badRequest("Invalid Marker '%s'.", marker)
		}
	}

	end := min(start+size, len(ids))
	if end < len(ids) {
		next = ids[end]
	}
	return ids[start:end], next, nil
}
