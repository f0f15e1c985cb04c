package saga

// Decider picks the destination of the envelope a service emits.
type Decider interface {
	Next(source Source, status Status) (string, error)
}

// Router is the centralized routing function backed by a validated table.
type Router struct {
	table RouteTable
}

// NewRouter validates table against every source and status before use.
func NewRouter(table RouteTable) (*Router, error) {
	if err := table.Validate(Sources, Statuses); err != nil {
		return nil, err
	}
	return &Router{table: table}, nil
}

func (r *Router) Next(source Source, status Status) (string, error) {
	return r.table.Lookup(source, status)
}

func (r *Router) Table() RouteTable {
	return r.table
}

// Forward sends every envelope to one topic: the orchestrator in the
// orchestrated topology.
type Forward string

func (f Forward) Next(Source, Status) (string, error) {
	return string(f), nil
}

// localDecider is a participant's own slice of the routing table.
type localDecider struct {
	table RouteTable
}

func (d localDecider) Next(source Source, status Status) (string, error) {
	return d.table.Lookup(source, status)
}

// NewDecider returns the decision logic of source for topology. In the
// choreographed topology the service decides with own, or with its slice of
// DefaultRoutes when own is nil; the table must cover every status of source.
func NewDecider(topology Topology, source Source, topics Topics, own RouteTable) (Decider, error) {
	if err := topics.Validate(); err != nil {
		return nil, err
	}
	switch topology {
	case Orchestrated:
		return Forward(topics.Orchestrator), nil
	case Choreographed:
		table := own
		if table == nil {
			table = ServiceRoutes(source, topics)
		}
		if err := table.Validate([]Source{source}, Statuses); err != nil {
			return nil, err
		}
		return localDecider{table: table}, nil
	default:
		return nil, ErrInvalidTopology.Wrapf("%q", topology)
	}
}
