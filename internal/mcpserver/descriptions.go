package mcpserver

// Tool descriptions with interpretation guidance for LLMs.
// Each description explains what the tool does, when to use it,
// how to interpret results, and key thresholds.

func describeCohesion() string {
	return `Measures how well the members of each PHP class belong together (LCOM) along with CK metrics.

USE WHEN:
- Deciding whether a class should be split
- Finding methods and properties nothing else in the class uses
- Reviewing god classes before a refactor
- Comparing cohesion between two revisions (pass ref)

INTERPRETING RESULTS:
- LCOM counts groups of members that communicate only among themselves
- LCOM = 1: fully cohesive, every member is connected
- LCOM >= 2: the class holds independent responsibilities; each cluster is a split candidate
- LCOM >= 4: strong refactoring candidate
- unused lists members in a cluster of their own (not called, read or written by any other member)
- lcom_hs is Henderson-Sellers LCOM in [0, 1]; -1 when the class has no fields or no methods
- excluded classes sit on an inheritance cycle and were not measured
- Inherited members count toward the subclass; traits are flattened into their users

METRICS RETURNED:
- Per-class: lcom, lcom_hs, clusters (member lists), unused, cbo, rfc, dit, noc, nom, nof, nok
- Summary: averages and maxima, low_cohesion_count, unused_members
- Diagnostics: duplicate declarations, trait conflicts, inheritance cycles, unresolved references`
}

func describeCoupling() string {
	return `Measures dependencies between PHP classes and namespaces and finds dependency cycles.

USE WHEN:
- Finding classes that depend on too many others
- Locating cycles that block modularization
- Checking namespace layering (stable abstractions)
- Assessing the blast radius of changing a class

INTERPRETING RESULTS:
- Ca (afferent): distinct classes depending on this one; high Ca means changes are risky
- Ce (efferent): distinct classes this one depends on; high Ce means fragile
- Instability I = Ce / (Ca + Ce): 0 stable, 1 unstable; > 0.8 flagged as unstable
- Namespace distance D = |A + I - 1|: near 0 is on the main sequence; near 1 is the zone of pain or uselessness
- Every class_cycles entry is an elementary cycle; the edge back to the first node is implied
- Pairs aggregate every reference kind (call, instantiation, inheritance, ...) from one class to another

METRICS RETURNED:
- class_pairs: from, to, count, kinds
- classes: afferent, efferent, in/out degree, instability
- namespaces: types, abstractness, instability, distance
- class_cycles and namespace_cycles
- Summary: pair and cycle counts, average instability and distance`
}

func describeGraph() string {
	return `Draws the class, namespace, or intra-class member dependency graph as a Mermaid or DOT diagram.

USE WHEN:
- Visualizing how classes or namespaces depend on each other
- Explaining an LCOM value by drawing which members talk to which (level member)
- Producing architecture diagrams for documentation

INTERPRETING RESULTS:
- Edge labels carry the number of references; arrows show the dominant reference kind
- Large graphs are pruned to the most central nodes by PageRank
- In a member diagram every disconnected group is one LCOM cluster

METRICS RETURNED:
- nodes and edges: counts before pruning
- diagram: Mermaid (default) or DOT source`
}

func describeRelation() string {
	return `Explains how two PHP classes use each other, member by member, in both directions.

USE WHEN:
- Understanding why two classes are coupled
- Checking whether a dependency can be inverted or removed
- Investigating a cycle reported by analyze_coupling

INTERPRETING RESULTS:
- forward lists how from uses to; backward lists how to uses from
- extends, implements and uses_trait flag structural dependencies
- Each use names the member it occurs in, the target member and the reference kind
- Inherited copies of members are not repeated

METRICS RETURNED:
- forward and backward: flags plus uses (where, target, kind, line)`
}

func describeCallPath() string {
	return `Finds the shortest call chain from one PHP method or function to another.

USE WHEN:
- Tracing how a request reaches a piece of code
- Checking whether a method can reach a side effect
- Confirming a method is unreachable from an entry point

INTERPRETING RESULTS:
- Only method calls and static calls are followed
- Methods are written Class::method() with the fully-qualified class name
- reachable false means no chain exists through resolved calls; dynamic calls are invisible

METRICS RETURNED:
- reachable, and path as the list of members from start to target`
}
