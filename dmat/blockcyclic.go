package dmat

// Block-cyclic index maps for one dimension of a distributed matrix. A
// global extent n is split into blocks of nb consecutive indices, and the
// blocks are dealt round-robin to the np processes of a grid row or column,
// starting at process src. All indices are zero based.

// numLocal returns how many of the n global indices land on process p when
// blocks of size nb are dealt cyclically over np processes starting at src.
func numLocal(n, nb, p, np, src int) (nl int) {
	var (
		mydist  = (np + p - src) % np
		nblocks = n / nb
	)
	nl = (nblocks / np) * nb
	extra := nblocks % np
	if mydist < extra {
		nl += nb
	} else if mydist == extra {
		nl += n % nb
	}
	return
}

// localToGlobal maps local index l on process p back to its global index.
func localToGlobal(l, nb, p, np, src int) int {
	return np*nb*(l/nb) + l%nb + ((np+p-src)%np)*nb
}

// globalToProcess returns the process owning global index g.
func globalToProcess(g, nb, np, src int) int {
	return (src + g/nb) % np
}

// globalToLocal returns the local index of global index g on its owner.
func globalToLocal(g, nb, np int) int {
	return nb*(g/(nb*np)) + g%nb
}
