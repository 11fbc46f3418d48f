package query

import (
	"strconv"
	"strings"
)

// ToURL renders the query options in a fixed order:
// $top, $skip, $select, $filter, $resultFormat, $expand, $orderby, $count.
//
// At top level options are joined by & and values are percent-encoded.
// Inside an expand options are joined by ; and left unencoded, since the
// enclosing $expand value is encoded as a whole.
func (q *Query) ToURL(inExpand bool) string {
	sep := "&"
	if inExpand {
		sep = ";"
	}

	var parts []string
	add := func(name, value string) {
		if !inExpand {
			value = encodeValue(value)
		}
		parts = append(parts, name+"="+value)
	}

	if q.top != nil {
		add("$top", strconv.Itoa(*q.top))
	}
	if q.skip != nil {
		add("$skip", strconv.Itoa(*q.skip))
	}
	if names := q.selectNames(); len(names) > 0 {
		v := strings.Join(names, ",")
		if q.selectDistinct {
			v = "distinct:" + v
		}
		add("$select", v)
	}
	if q.filter != nil {
		add("$filter", q.filter.ToURL())
	}
	if q.format != "" {
		add("$resultFormat", q.format)
	}
	if len(q.expand) > 0 {
		items := make([]string, len(q.expand))
		for i, e := range q.expand {
			items[i] = e.String()
		}
		add("$expand", strings.Join(items, ","))
	}
	if len(q.orderBy) > 0 {
		items := make([]string, len(q.orderBy))
		for i, o := range q.orderBy {
			items[i] = o.ToURL()
		}
		add("$orderby", strings.Join(items, ","))
	}
	if q.count != nil {
		add("$count", strconv.FormatBool(*q.count))
	}
	return strings.Join(parts, sep)
}

func (q *Query) String() string { return q.ToURL(false) }

const upperhex = "0123456789ABCDEF"

// encodeValue percent-encodes everything except unreserved characters and
// , ' ( ) / : $ @ * !
func encodeValue(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isSafe(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&15])
	}
	return b.String()
}

func isSafe(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-._~,'()/:$@*!", c) >= 0
}
